package evidence

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAssignsSequentialEvidenceRefs(t *testing.T) {
	s := NewStore()
	now := time.Now()
	r1 := s.Put("ps aux", now, now, 0, []byte("a"), nil)
	r2 := s.Put("ss -tlnp", now, now, 0, []byte("b"), nil)

	assert.True(t, strings.HasPrefix(r1.Ref, "evidence/0001_ps"))
	assert.True(t, strings.HasPrefix(r2.Ref, "evidence/0002_ss"))
	require.Equal(t, 2, s.Len())

	trail := s.AuditTrail()
	assert.Equal(t, uint64(1), trail[0].Seq)
	assert.Equal(t, uint64(2), trail[1].Seq)
}

func TestPutTruncatesOversizedOutput(t *testing.T) {
	s := NewStore()
	big := bytes.Repeat([]byte("x"), MaxEvidenceBytes+1000)
	now := time.Now()
	r := s.Put("cat bigfile", now, now, 0, big, nil)

	require.True(t, r.Truncated)
	assert.LessOrEqual(t, r.Bytes, int64(MaxEvidenceBytes))

	ev := s.Evidence()[0]
	assert.Contains(t, string(ev.Data), "[TRUNCATED after")
}

func TestPutPreservesEvidenceOnFailure(t *testing.T) {
	s := NewStore()
	now := time.Now()
	r := s.Put("systemctl status myapp", now, now, 3, []byte("partial output before failure"), errors.New("exit status 3"))

	require.Equal(t, 1, s.Len())
	ev := s.Evidence()[0]
	assert.Equal(t, r.Ref, ev.Ref)
	assert.Equal(t, "partial output before failure", string(ev.Data))

	trail := s.AuditTrail()
	assert.Equal(t, 3, trail[0].ExitCode)
	assert.Contains(t, trail[0].Command, "error:")
}

func TestPutAttachmentSharesSequenceWithEvidence(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Put("ps aux", now, now, 0, []byte("a"), nil)
	r := s.PutAttachment("/etc/myapp/config.yml", []byte("port: 8080\n"))

	assert.True(t, strings.HasPrefix(r.Ref, "attachments/0002_config.yml"))
	require.Len(t, s.Attachments(), 1)
}

func TestSnapshotsAreIndependentCopies(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Put("echo hi", now, now, 0, []byte("hi"), nil)

	a1 := s.Evidence()
	a1[0].Data[0] = 'Z'
	a2 := s.Evidence()
	assert.Equal(t, byte('h'), a2[0].Data[0])
}
