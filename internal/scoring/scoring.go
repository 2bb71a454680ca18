// Package scoring computes the per-process business-relevance score
// described in spec.md §4.5: a bounded, linear sum of signed contributions,
// each traceable to a Decision.
package scoring

import (
	"fmt"

	"github.com/rcourtman/xcprobe/internal/bundle"
	"github.com/rcourtman/xcprobe/internal/factmodel"
	"github.com/rcourtman/xcprobe/internal/packplan"
)

// BusinessThreshold is the score at or above which a process is considered
// a business process (spec.md §4.5).
const BusinessThreshold = 0.6

const (
	deltaFramework    = 0.30
	deltaPortBinding  = 0.20
	deltaMainPID      = 0.30
	deltaNonRootUser  = 0.10
	deltaSystemNoise  = -0.40
	deltaOrphanOrInit = -0.20
)

var rootLikeUsers = map[string]bool{
	"root": true, "SYSTEM": true, "LocalService": true, "NetworkService": true,
}

// Input bundles the facts the scorer needs about one process, pre-resolved
// by the caller from the manifest (port bindings by pid, MainPID set, etc).
type Input struct {
	Process          bundle.Process
	IsPortBound      bool
	IsServiceMainPID bool
	EvidenceRef      string // evidence ref backing this process fact, if any
}

// Result is the result of scoring one process: its bounded score and the
// ordered list of Decisions that produced it.
type Result struct {
	PID        int
	Value      float64
	IsBusiness bool
	Decisions  []packplan.Decision
}

// Score computes score(process) per spec.md §4.5's signal table.
func Score(in Input) Result {
	var decisions []packplan.Decision
	raw := 0.0

	refs := func() []string {
		if in.EvidenceRef == "" {
			return nil
		}
		return []string{in.EvidenceRef}
	}

	basename := factmodel.Basename(in.Process.Cmdline)

	if factmodel.IsFrameworkBasename(basename) {
		raw += deltaFramework
		decisions = append(decisions, signalDecision(
			fmt.Sprintf("cmdline basename %q is a known framework", basename), deltaFramework, refs()))
	}

	if in.IsPortBound {
		raw += deltaPortBinding
		decisions = append(decisions, signalDecision("process holds a listening port binding", deltaPortBinding, refs()))
	}

	if in.IsServiceMainPID {
		raw += deltaMainPID
		decisions = append(decisions, signalDecision("process is the MainPID of an active service", deltaMainPID, refs()))
	}

	if in.Process.User != "" && !rootLikeUsers[in.Process.User] {
		raw += deltaNonRootUser
		decisions = append(decisions, signalDecision(
			fmt.Sprintf("runs as non-privileged user %q", in.Process.User), deltaNonRootUser, refs()))
	}

	if factmodel.IsSystemNoiseBasename(basename) {
		raw += deltaSystemNoise
		decisions = append(decisions, signalDecision(
			fmt.Sprintf("cmdline basename %q matches the system-noise set", basename), deltaSystemNoise, refs()))
	}

	if in.Process.PPID == 0 || in.Process.PID == 1 {
		raw += deltaOrphanOrInit
		decisions = append(decisions, signalDecision("ppid is 0 or pid is 1", deltaOrphanOrInit, refs()))
	}

	value := clamp(0.5+raw, 0.0, 1.0)
	return Result{
		PID:        in.Process.PID,
		Value:      value,
		IsBusiness: value >= BusinessThreshold,
		Decisions:  decisions,
	}
}

func signalDecision(text string, delta float64, evidenceRefs []string) packplan.Decision {
	// Decision.Confidence here is the magnitude of the signal's pull on the
	// final score, not an independent probability; §4.5 treats every
	// contribution as a deterministic rule, not a measured likelihood.
	confidence := clamp(0.5+delta, 0.0, 1.0)
	return packplan.NewDecision(text, confidence, evidenceRefs)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
