package bundle

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/xcprobe/internal/xcerror"
)

func sampleBundle() *Bundle {
	return &Bundle{
		Manifest: Manifest{
			SchemaVersion: ManifestSchemaVersion,
			CollectionID:  "col-1",
			CollectedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			System:        SystemInfo{Hostname: "host1", OSType: "linux"},
			Processes: []Process{
				{PID: 100, PPID: 1, User: "app", Cmdline: []string{"/usr/bin/myapp", "--port", "8080"}},
			},
			Services:         []Service{{Name: "myapp.service", Manager: ManagerSystemd}},
			Ports:            []PortBinding{{Protocol: ProtocolTCP, Address: "0.0.0.0", Port: 8080}},
			Packages:         []Package{{Name: "myapp", Version: "1.0.0", Source: SourceDPKG}},
			ConfigSnippets:   []ConfigSnippet{{OriginalPath: "/etc/myapp/config.yml", AttachmentRef: "attachments/0001.txt"}},
			EnvironmentFiles: []EnvironmentFile{},
		},
		AuditTrail: []AuditRecord{
			{Seq: 1, Command: "ps aux", ExitCode: 0, EvidenceRef: "evidence/0001_ps.txt", Bytes: 42},
		},
		Evidence: []Attachment{
			{Ref: "evidence/0001_ps.txt", Data: []byte("100 1 app /usr/bin/myapp\n")},
		},
		Attachments: []Attachment{
			{Ref: "attachments/0002_config.yml", Data: []byte("port=8080\n")},
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	b := sampleBundle()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, b))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, b.Manifest.CollectionID, got.Manifest.CollectionID)
	assert.Equal(t, b.Manifest.Processes[0].PID, got.Manifest.Processes[0].PID)
	assert.Equal(t, b.AuditTrail[0].Command, got.AuditTrail[0].Command)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, []byte("port=8080\n"), got.Attachments[0].Data)
}

func TestReadDetectsChecksumTampering(t *testing.T) {
	b := sampleBundle()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, b))

	tampered := bytes.Replace(buf.Bytes(), []byte("port=8080"), []byte("port=9999"), 1)
	if bytes.Equal(tampered, buf.Bytes()) {
		t.Skip("tamper substring not found in compressed stream")
	}

	_, err := Read(bytes.NewReader(tampered))
	require.Error(t, err)
	kind, ok := xcerror.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, xcerror.BundleIntegrity, kind)
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	raw := []byte(`{"schema_version":"1","collection_id":"x"}`)
	var m Manifest
	err := Validate(raw, &m)
	require.Error(t, err)
	kind, ok := xcerror.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, xcerror.BundleSchema, kind)
}

func TestValidateIgnoresUnknownOptionalField(t *testing.T) {
	raw := []byte(`{
		"schema_version":"1","collection_id":"x","collected_at":"2026-01-01T00:00:00Z",
		"system":{"hostname":"h","os_type":"linux"},
		"processes":[],"services":[],"ports":[],"packages":[],"config_snippets":[],"environment_files":[],
		"some_future_field": {"nested": true}
	}`)
	var m Manifest
	require.NoError(t, Validate(raw, &m))
	assert.Equal(t, "x", m.CollectionID)
}

func TestMarshalDeterministicStable(t *testing.T) {
	m := sampleBundle().Manifest
	a, err := MarshalDeterministic(m)
	require.NoError(t, err)
	b, err := MarshalDeterministic(m)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.False(t, bytes.HasSuffix(a, []byte("\n")))
}
