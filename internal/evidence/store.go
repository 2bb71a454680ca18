// Package evidence implements the append-only evidence store described in
// spec.md §4.3: every command's captured output becomes one evidence file
// and one audit record, with a fixed truncation cap and no silent data loss
// on failure. Collected config/log files become attachments through the
// same store, sharing its sequence counter for archive-wide uniqueness.
package evidence

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rcourtman/xcprobe/internal/bundle"
)

// MaxEvidenceBytes is the per-record truncation cap (spec.md §4.3).
const MaxEvidenceBytes = 8 * 1024 * 1024

const truncationMarkerFmt = "\n[TRUNCATED after %d bytes]"

// Store accumulates evidence files, attachments, and their shared audit
// trail for one collection run. Safe for concurrent use; sequence numbers
// are assigned under a single mutex so the audit trail is gap-free and
// ordered regardless of how many goroutines are writing concurrently
// (grounded on the mutex-protected monotonic sequence counter in the
// teacher's audit logger).
type Store struct {
	mu          sync.Mutex
	seq         uint64
	evidence    []bundle.Attachment
	attachments []bundle.Attachment
	audit       []bundle.AuditRecord
}

// NewStore constructs an empty evidence store.
func NewStore() *Store {
	return &Store{}
}

// Result describes one stored record: its reference, whether it was
// truncated, and its final byte count (after truncation, including any
// marker suffix).
type Result struct {
	Ref       string
	Truncated bool
	Bytes     int64
}

func truncate(data []byte) ([]byte, bool) {
	if int64(len(data)) <= MaxEvidenceBytes {
		return data, false
	}
	marker := fmt.Sprintf(truncationMarkerFmt, MaxEvidenceBytes)
	keep := MaxEvidenceBytes - int64(len(marker))
	if keep < 0 {
		keep = 0
	}
	trimmed := make([]byte, 0, keep+int64(len(marker)))
	trimmed = append(trimmed, data[:keep]...)
	trimmed = append(trimmed, []byte(marker)...)
	return trimmed, true
}

// slug derives a short, filesystem-safe identifier from a command string
// for inclusion in its evidence_ref, e.g. "systemctl show nginx" -> "systemctl".
func slug(command string) string {
	fields := strings.Fields(command)
	s := "cmd"
	if len(fields) > 0 {
		s = fields[0]
	}
	if i := strings.LastIndexAny(s, `/\`); i >= 0 {
		s = s[i+1:]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := b.String()
	if out == "" {
		out = "cmd"
	}
	if len(out) > 32 {
		out = out[:32]
	}
	return out
}

// Put records the result of running command, truncating data to
// MaxEvidenceBytes if necessary and always appending both the evidence file
// and its audit record before returning — a command that fails (nonzero
// exitCode, or execErr non-nil) still has its partial output and audit
// record preserved rather than dropped (spec.md §4.3 "no silent drops").
func (s *Store) Put(command string, startedAt, completedAt time.Time, exitCode int, data []byte, execErr error) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	// Seq leads the ref so lexical sort of refs (spec.md §4.1 "evidence/*
	// sorted by seq") matches numeric sort by sequence regardless of slug.
	ref := fmt.Sprintf("%s%04d_%s.txt", bundle.EvidencePrefix, s.seq, slug(command))

	data, truncated := truncate(data)
	s.evidence = append(s.evidence, bundle.Attachment{Ref: ref, Data: data})

	cmdStr := command
	if execErr != nil {
		cmdStr = fmt.Sprintf("%s (error: %v)", command, execErr)
	}
	s.audit = append(s.audit, bundle.AuditRecord{
		Seq:         s.seq,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Command:     cmdStr,
		ExitCode:    exitCode,
		EvidenceRef: ref,
		Bytes:       int64(len(data)),
	})

	return Result{Ref: ref, Truncated: truncated, Bytes: int64(len(data))}
}

// PutAttachment stores a collected config or log file's already-redacted
// bytes as an attachment, sharing the same sequence counter as Put so every
// reference in the bundle is archive-wide unique.
func (s *Store) PutAttachment(originalPath string, data []byte) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	base := originalPath
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	ref := fmt.Sprintf("%s%04d_%s", bundle.AttachmentsPrefix, s.seq, base)

	data, truncated := truncate(data)
	s.attachments = append(s.attachments, bundle.Attachment{Ref: ref, Data: data})
	return Result{Ref: ref, Truncated: truncated, Bytes: int64(len(data))}
}

func copyAttachments(in []bundle.Attachment) []bundle.Attachment {
	out := make([]bundle.Attachment, len(in))
	for i, a := range in {
		data := make([]byte, len(a.Data))
		copy(data, a.Data)
		out[i] = bundle.Attachment{Ref: a.Ref, Data: data}
	}
	return out
}

// Evidence returns a snapshot of every evidence record stored so far, in
// the order they were written.
func (s *Store) Evidence() []bundle.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyAttachments(s.evidence)
}

// Attachments returns a snapshot of every attachment stored so far, in the
// order they were written.
func (s *Store) Attachments() []bundle.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyAttachments(s.attachments)
}

// AuditTrail returns a snapshot of every audit record written so far, in
// sequence order.
func (s *Store) AuditTrail() []bundle.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bundle.AuditRecord, len(s.audit))
	copy(out, s.audit)
	return out
}

// Len reports how many audit records have been stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audit)
}
