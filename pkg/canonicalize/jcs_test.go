package canonicalize

import (
	"testing"
)

func TestJCS_Sorting(t *testing.T) {
	input := map[string]interface{}{
		"c": 3,
		"a": 1,
		"b": 2,
	}

	expected := `{"a":1,"b":2,"c":3}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}

	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestJCS_RecursiveSorting(t *testing.T) {
	input := map[string]interface{}{
		"z": map[string]interface{}{
			"y": "foo",
			"x": "bar",
		},
		"a": 1,
	}

	expected := `{"a":1,"z":{"x":"bar","y":"foo"}}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}

	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestJCS_NoHTMLEscaping(t *testing.T) {
	input := map[string]string{
		"html": "<script>alert('xss')</script> &",
	}

	// Standard encoding/json would emit < escapes; RFC 8785 forbids them.
	expected := `{"html":"<script>alert('xss')</script> &"}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}

	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestJCS_StructTags(t *testing.T) {
	type record struct {
		Zebra string `json:"zebra"`
		Alpha string `json:"alpha"`
	}

	b, err := JCS(record{Zebra: "z", Alpha: "a"})
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}

	expected := `{"alpha":"a","zebra":"z"}`
	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestTransform_MatchesJCS(t *testing.T) {
	raw := []byte(`{"b": 2, "a": 1}`)

	transformed, err := Transform(raw)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if string(transformed) != `{"a":1,"b":2}` {
		t.Errorf("unexpected canonical form: %s", transformed)
	}
}

func TestCanonicalHash_Stable(t *testing.T) {
	a := map[string]interface{}{"x": 1, "y": "two"}
	b := map[string]interface{}{"y": "two", "x": 1}

	ha, err := CanonicalHash(a)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	hb, err := CanonicalHash(b)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	if ha != hb {
		t.Errorf("hashes differ for equivalent values: %s vs %s", ha, hb)
	}
	if len(ha) != 64 {
		t.Errorf("expected 64-char hex digest, got %d chars", len(ha))
	}
}
