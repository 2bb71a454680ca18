package bundle

import (
	"encoding/json"
	"fmt"

	"github.com/rcourtman/xcprobe/internal/xcerror"
)

// requiredManifestFields lists the top-level manifest.json keys that must be
// present for the document to be schema-valid (spec.md §4.1 "unknown
// required fields fail validation; unknown optional fields are ignored").
// Fields not in this list are optional: present-but-unrecognized keys are
// silently ignored by the decoder rather than rejected, so the schema can
// grow without breaking older analyzers.
var requiredManifestFields = []string{
	"schema_version",
	"collection_id",
	"collected_at",
	"system",
	"processes",
	"services",
	"ports",
	"packages",
	"config_snippets",
	"environment_files",
}

// Validate decodes raw manifest.json bytes into out, first checking that
// every required top-level field is present. Unrecognized fields are
// tolerated; missing required fields or a schema_version mismatch both fail
// with KindBundleSchema.
func Validate(raw []byte, out *Manifest) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return xcerror.Wrap(xcerror.BundleSchema, "parse manifest.json", err)
	}
	for _, field := range requiredManifestFields {
		if _, ok := top[field]; !ok {
			return xcerror.New(xcerror.BundleSchema, fmt.Sprintf("missing required field %q", field))
		}
	}

	var version string
	if err := json.Unmarshal(top["schema_version"], &version); err != nil {
		return xcerror.Wrap(xcerror.BundleSchema, "parse schema_version", err)
	}
	if version != ManifestSchemaVersion {
		return xcerror.New(xcerror.BundleSchema, fmt.Sprintf("unsupported schema_version %q", version))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return xcerror.Wrap(xcerror.BundleSchema, "decode manifest", err)
	}
	return nil
}
