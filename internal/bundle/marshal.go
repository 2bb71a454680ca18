package bundle

import (
	"bytes"
	"encoding/json"
)

// MarshalDeterministic renders v as indented JSON with HTML-escaping
// disabled and no trailing newline. Struct fields serialize in declaration
// order and map keys are sorted by encoding/json, so two calls over
// equal values always produce byte-identical output (spec.md §4.9's
// determinism requirement, reused here for manifest and checksum members).
func MarshalDeterministic(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	return bytes.TrimRight(out, "\n"), nil
}
