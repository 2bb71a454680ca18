// Package packplan holds the pack plan data model and serializes a
// finished PackPlan to disk and back, guaranteeing that the same pack
// plan value always produces the same bytes, per spec.md §4.9.
package packplan

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rcourtman/xcprobe/internal/bundle"
	"github.com/rcourtman/xcprobe/internal/xcerror"
)

// FileName is the conventional pack plan output file name.
const FileName = "pack-plan.json"

// Write serializes plan deterministically and writes it to path, creating
// or truncating the file. File permissions are 0o644.
func Write(path string, plan *PackPlan) error {
	data, err := bundle.MarshalDeterministic(plan)
	if err != nil {
		return xcerror.Wrap(xcerror.BundleSchema, "marshal pack plan", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return xcerror.Wrap(xcerror.Unsupported, fmt.Sprintf("write pack plan to %s", path), err)
	}
	return nil
}

// Marshal returns the deterministic JSON bytes for plan without touching
// the filesystem, for callers that embed the plan elsewhere (e.g. a
// bundle attachment or an HTTP response body).
func Marshal(plan *PackPlan) ([]byte, error) {
	data, err := bundle.MarshalDeterministic(plan)
	if err != nil {
		return nil, xcerror.Wrap(xcerror.BundleSchema, "marshal pack plan", err)
	}
	return append(data, '\n'), nil
}

// Read loads a pack plan previously written by Write.
func Read(path string) (*PackPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xcerror.Wrap(xcerror.Unsupported, fmt.Sprintf("read pack plan from %s", path), err)
	}
	var plan PackPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, xcerror.Wrap(xcerror.BundleSchema, "unmarshal pack plan", err)
	}
	return &plan, nil
}
