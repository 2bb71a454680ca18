package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rcourtman/xcprobe/internal/bundle"
)

func TestScoreFrameworkPortAndMainPIDIsBusiness(t *testing.T) {
	s := Score(Input{
		Process:          bundle.Process{PID: 100, PPID: 1, User: "app", Cmdline: []string{"/usr/bin/node", "server.js"}},
		IsPortBound:      true,
		IsServiceMainPID: true,
		EvidenceRef:      "evidence/ps_0001.txt",
	})
	assert.True(t, s.IsBusiness)
	assert.InDelta(t, 1.0, s.Value, 1e-9)
	assert.Len(t, s.Decisions, 4)
}

func TestScoreKernelThreadIsNotBusiness(t *testing.T) {
	s := Score(Input{
		Process: bundle.Process{PID: 9, PPID: 2, User: "root", Cmdline: []string{"[kworker/0:1]"}},
	})
	assert.False(t, s.IsBusiness)
	assert.Less(t, s.Value, BusinessThreshold)
}

func TestScoreInitProcessPenalized(t *testing.T) {
	s := Score(Input{Process: bundle.Process{PID: 1, PPID: 0, User: "root", Cmdline: []string{"/sbin/init"}}})
	assert.InDelta(t, 0.3, s.Value, 1e-9)
}

func TestScorePlainUnprivilegedProcessBelowThreshold(t *testing.T) {
	s := Score(Input{Process: bundle.Process{PID: 500, PPID: 400, User: "alice", Cmdline: []string{"/usr/bin/bash"}}})
	assert.InDelta(t, 0.6, s.Value, 1e-9)
	assert.True(t, s.IsBusiness)
}

func TestScoreClampsAtZero(t *testing.T) {
	s := Score(Input{Process: bundle.Process{PID: 10, PPID: 0, User: "root", Cmdline: []string{"kworker/1:2"}}})
	assert.Equal(t, 0.0, s.Value)
}
