// Package redaction implements the pattern and entropy scanning engine
// described in spec.md §4.2. It is pure, reentrant, and content-agnostic: it
// never parses structured formats, operating instead on byte sequences with
// UTF-8 tolerance.
package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

// Mode selects the placeholder style used to replace a redacted span.
type Mode string

const (
	// ModeStandard replaces matches with the literal string "[REDACTED]".
	ModeStandard Mode = "standard"
	// ModeHash replaces matches with "[HASH:<12 hex chars>]" where the hash
	// is the SHA-256 digest of the original matched bytes.
	ModeHash Mode = "hash"
)

const standardPlaceholder = "[REDACTED]"

var hashPlaceholderPattern = regexp.MustCompile(`^\[HASH:[0-9a-f]{12}\]$`)

// isPlaceholder reports whether b is itself a redaction placeholder, so a
// second pass over already-redacted text never re-matches it (spec.md §8
// invariant 1, redaction idempotence).
func isPlaceholder(b []byte) bool {
	return string(b) == standardPlaceholder || hashPlaceholderPattern.Match(b)
}

// Report carries the observability counts for one Redact call, per spec.md
// §4.2 and the RedactionReport type in §3.
type Report struct {
	Replacements int
	PatternsHit  map[string]int
	EntropyHits  int
}

func newReport() *Report {
	return &Report{PatternsHit: make(map[string]int)}
}

// Threshold returns an entropy threshold; the zero value means "use
// DefaultEntropyThreshold".
type Options struct {
	Mode             Mode
	EntropyThreshold float64
}

func (o Options) threshold() float64 {
	if o.EntropyThreshold > 0 {
		return o.EntropyThreshold
	}
	return DefaultEntropyThreshold
}

func (o Options) mode() Mode {
	if o.Mode == "" {
		return ModeStandard
	}
	return o.Mode
}

// Redact applies the pattern pass followed by the entropy pass, in that
// order, so entropy never re-triggers on the low-entropy placeholder text
// left behind by the pattern pass (spec.md §4.2 "Ordering matters").
func Redact(text string, opts Options) (string, *Report) {
	report := newReport()
	out := applyPatterns([]byte(text), opts, report)
	out = applyEntropy(out, opts, report)
	return string(out), report
}

func placeholder(mode Mode, original []byte) string {
	if mode == ModeHash {
		sum := sha256.Sum256(original)
		return fmt.Sprintf("[HASH:%s]", hex.EncodeToString(sum[:])[:12])
	}
	return standardPlaceholder
}

func applyPatterns(text []byte, opts Options, report *Report) []byte {
	for _, rule := range patternRules {
		text = applyPatternRule(text, rule, opts, report)
	}
	return text
}

func applyPatternRule(text []byte, rule patternRule, opts Options, report *Report) []byte {
	matches := rule.re.FindAllSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	out := make([]byte, 0, len(text))
	cursor := 0
	hits := 0
	for _, m := range matches {
		var start, end int
		if rule.group == 0 {
			start, end = m[0], m[1]
		} else {
			gi := rule.group * 2
			if gi+1 >= len(m) || m[gi] < 0 {
				continue
			}
			start, end = m[gi], m[gi+1]
		}
		if start < cursor {
			// Overlapping with a previous redaction in this same rule; skip.
			continue
		}
		if isPlaceholder(text[start:end]) {
			// Already redacted by an earlier pass; leave untouched so a
			// second scan over redacted text reports zero new hits.
			continue
		}
		out = append(out, text[cursor:start]...)
		out = append(out, []byte(placeholder(opts.mode(), text[start:end]))...)
		cursor = end
		hits++
	}
	out = append(out, text[cursor:]...)

	if hits > 0 {
		report.Replacements += hits
		report.PatternsHit[rule.id] += hits
	}
	return out
}

func applyEntropy(text []byte, opts Options, report *Report) []byte {
	threshold := opts.threshold()
	mode := opts.mode()

	out := make([]byte, 0, len(text))
	i := 0
	for i < len(text) {
		if !isTokenByte(text[i]) {
			out = append(out, text[i])
			i++
			continue
		}
		j := i
		for j < len(text) && isTokenByte(text[j]) {
			j++
		}
		token := text[i:j]
		if isHighEntropyToken(token, threshold) {
			out = append(out, []byte(placeholder(mode, token))...)
			report.Replacements++
			report.EntropyHits++
		} else {
			out = append(out, token...)
		}
		i = j
	}
	return out
}

// IsSensitiveKey reports whether name (e.g. an environment variable or
// config key name) matches the secret-key vocabulary used by the pattern
// pass. Exported for the Dependency detector (§4.7), which must flag
// sensitive env *names* without ever inspecting values.
func IsSensitiveKey(name string) bool {
	return isSensitiveKey(name)
}

// WouldRedact reports whether re-scanning text would produce any
// replacement at all — used to implement the RedactionLeak invariant
// (spec.md §3 invariant 5, §7).
func WouldRedact(text string, opts Options) bool {
	_, report := Redact(text, opts)
	return report.Replacements > 0
}
