package rules

import (
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/cel-go/cel"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/Veridex-Labs/veridex/kernel/pkg/canonicalize"
)

// catalogDocument is the on-disk YAML shape.
type catalogDocument struct {
	Version string `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// Loader compiles catalog documents into immutable snapshots. One CEL
// environment is shared across loads; compiled programs are snapshot-owned.
type Loader struct {
	env    *cel.Env
	schema *jsonschema.Schema
}

// NewLoader builds the CEL environment the predicates compile against.
func NewLoader() (*Loader, error) {
	env, err := cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("jurisdiction", cel.StringType),
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	schema, err := jsonschema.CompileString("catalog.schema.json", catalogSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile catalog schema: %w", err)
	}

	return &Loader{env: env, schema: schema}, nil
}

// Load parses and validates a YAML catalog document. Any failure rejects the
// whole document; a returned snapshot is complete and immutable.
func (l *Loader) Load(data []byte) (*Snapshot, error) {
	// Structural validation against the generic decoding first, so schema
	// errors name the offending path instead of a Go unmarshal failure.
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("%w: not valid YAML: %v", ErrCatalogInvalid, err)
	}
	if err := l.schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogInvalid, err)
	}

	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogInvalid, err)
	}

	version, err := semver.NewVersion(doc.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: version %q is not semver: %v", ErrCatalogInvalid, doc.Version, err)
	}

	snap := &Snapshot{
		version:        version,
		byJurisdiction: make(map[string][]*CompiledRule),
		loadedAt:       time.Now().UTC(),
	}

	seen := make(map[string]struct{}, len(doc.Rules))
	for i, r := range doc.Rules {
		// Normalize to NFC so visually identical rule text hashes identically
		// regardless of the editor that produced the document.
		r.ID = norm.NFC.String(r.ID)
		r.Jurisdiction = norm.NFC.String(r.Jurisdiction)
		r.Citation = norm.NFC.String(r.Citation)

		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate rule id %q", ErrCatalogInvalid, r.ID)
		}
		seen[r.ID] = struct{}{}

		if r.Citation == "" {
			return nil, fmt.Errorf("%w: rule %q has no citation", ErrCatalogInvalid, r.ID)
		}
		if r.Effect == EffectRequireFields && len(r.RequiredFields) == 0 {
			return nil, fmt.Errorf("%w: rule %q is REQUIRE_FIELDS with no required_fields", ErrCatalogInvalid, r.ID)
		}
		if r.Effect != EffectRequireFields && len(r.RequiredFields) > 0 {
			return nil, fmt.Errorf("%w: rule %q sets required_fields but effect is %s", ErrCatalogInvalid, r.ID, r.Effect)
		}

		prg, err := l.compile(r.Predicate)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %q predicate: %v", ErrCatalogInvalid, r.ID, err)
		}

		compiled := &CompiledRule{Rule: r, order: i, prg: prg}
		snap.byJurisdiction[r.Jurisdiction] = append(snap.byJurisdiction[r.Jurisdiction], compiled)
		snap.ruleCount++
	}

	hash, err := canonicalize.CanonicalHash(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: content hash: %v", ErrCatalogInvalid, err)
	}
	snap.contentHash = hash

	return snap, nil
}

// LoadFile loads a catalog from a file path.
func (l *Loader) LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from validated config
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return l.Load(data)
}

func (l *Loader) compile(expr string) (cel.Program, error) {
	ast, issues := l.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("predicate must yield bool, got %s", ast.OutputType())
	}
	prg, err := l.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000), // Hard limit on computational complexity
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	return prg, nil
}
