// Package xcerror defines the typed error kinds shared by the collector and
// analyzer, per the error handling design in spec.md §7.
package xcerror

import (
	"errors"
	"fmt"
)

// Kind identifies one of the fixed error categories the core can raise.
type Kind string

const (
	// BundleIntegrity signals a digest mismatch or a missing file referenced
	// by the audit log.
	BundleIntegrity Kind = "bundle_integrity"
	// BundleSchema signals a manifest validation failure.
	BundleSchema Kind = "bundle_schema"
	// EvidenceMissing signals a decision referencing an evidence ref that is
	// not present in the archive.
	EvidenceMissing Kind = "evidence_missing"
	// RedactionLeak signals that a pack-plan string would be redacted if
	// rescanned; always fatal.
	RedactionLeak Kind = "redaction_leak"
	// TransportTimeout signals a per-command or global collection timeout.
	TransportTimeout Kind = "transport_timeout"
	// Unsupported signals an unknown OS or service manager.
	Unsupported Kind = "unsupported"
)

// Error is the single typed error the core returns. Callers use errors.As
// to recover it and inspect Kind, ClusterID, and EvidenceRef.
type Error struct {
	Kind        Kind
	ClusterID   string
	EvidenceRef string
	Member      string
	Msg         string
	Err         error
}

func (e *Error) Error() string {
	ctx := ""
	switch {
	case e.ClusterID != "" && e.EvidenceRef != "":
		ctx = fmt.Sprintf(" (cluster=%s evidence_ref=%s)", e.ClusterID, e.EvidenceRef)
	case e.ClusterID != "":
		ctx = fmt.Sprintf(" (cluster=%s)", e.ClusterID)
	case e.EvidenceRef != "":
		ctx = fmt.Sprintf(" (evidence_ref=%s)", e.EvidenceRef)
	case e.Member != "":
		ctx = fmt.Sprintf(" (member=%s)", e.Member)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s%s: %v", e.Kind, e.Msg, ctx, e.Err)
	}
	return fmt.Sprintf("%s: %s%s", e.Kind, e.Msg, ctx)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, xcerror.New(xcerror.BundleIntegrity, "")) style checks
// alongside the more common errors.As(err, &xerr) form.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// New constructs a bare Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an Error of the given kind wrapping err.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// WithCluster returns a copy of e annotated with a cluster id.
func (e *Error) WithCluster(id string) *Error {
	c := *e
	c.ClusterID = id
	return &c
}

// WithEvidenceRef returns a copy of e annotated with an evidence ref.
func (e *Error) WithEvidenceRef(ref string) *Error {
	c := *e
	c.EvidenceRef = ref
	return &c
}

// WithMember returns a copy of e annotated with an archive member name.
func (e *Error) WithMember(member string) *Error {
	c := *e
	c.Member = member
	return &c
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var xerr *Error
	if errors.As(err, &xerr) {
		return xerr.Kind, true
	}
	return "", false
}
