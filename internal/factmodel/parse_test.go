package factmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePSLinux(t *testing.T) {
	raw := "  100     1 myapp      3600 /usr/bin/myapp --port 8080\n" +
		"  200   100 myapp        10 /usr/bin/myapp-worker\n" +
		"garbage line that does not match\n"
	procs, skipped := ParsePSLinux(raw)
	require.Len(t, procs, 2)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 100, procs[0].PID)
	assert.Equal(t, 1, procs[0].PPID)
	assert.Equal(t, "myapp", procs[0].User)
	assert.Equal(t, []string{"/usr/bin/myapp", "--port", "8080"}, procs[0].Cmdline)
}

func TestParsePSWindows(t *testing.T) {
	raw := `100,1,"C:\App\app.exe" --port 8080` + "\n" + "not,valid\n"
	procs, skipped := ParsePSWindows(raw)
	require.Len(t, procs, 1)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 100, procs[0].PID)
	assert.Equal(t, `C:\App\app.exe`, procs[0].Cmdline[0])
}

func TestParseEnvironNamesDiscardsValues(t *testing.T) {
	raw := "PATH=/usr/bin\x00DATABASE_PASSWORD=supersecret\x00HOME=/root"
	names := ParseEnvironNames(raw)
	assert.Equal(t, []string{"PATH", "DATABASE_PASSWORD", "HOME"}, names)
	for _, n := range names {
		assert.NotContains(t, n, "supersecret")
	}
}

func TestParseSystemdShow(t *testing.T) {
	raw := "ExecStart=/usr/bin/myapp --port 8080\n" +
		"WorkingDirectory=/opt/myapp\n" +
		"User=myapp\n" +
		"ActiveState=active\n" +
		"MainPID=100\n" +
		"EnvironmentFile=/etc/myapp/env.conf\n" +
		"Environment=DATABASE_URL=postgres://x FOO=bar\n"
	svc := ParseSystemdShow("myapp.service", raw)
	assert.Equal(t, "/opt/myapp", svc.WorkingDirectory)
	assert.Equal(t, "myapp", svc.User)
	require.NotNil(t, svc.MainPID)
	assert.Equal(t, 100, *svc.MainPID)
	assert.Equal(t, []string{"/etc/myapp/env.conf"}, svc.EnvironmentFilePaths)
	assert.Equal(t, []string{"DATABASE_URL", "FOO"}, svc.EnvironmentLines)
}
