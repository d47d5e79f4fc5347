package rules

// catalogSchema is the structural contract a catalog document must satisfy
// before any per-rule semantic checks run.
const catalogSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "rules"],
  "properties": {
    "version": {
      "type": "string",
      "minLength": 1
    },
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "jurisdiction", "predicate", "effect", "citation"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "jurisdiction": {"type": "string", "minLength": 1},
          "predicate": {"type": "string", "minLength": 1},
          "effect": {"enum": ["ALLOW", "BLOCK", "REQUIRE_FIELDS"]},
          "required_fields": {
            "type": "array",
            "items": {"type": "string", "minLength": 1}
          },
          "citation": {"type": "string", "minLength": 1}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`
