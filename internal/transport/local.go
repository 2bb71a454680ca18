package transport

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/rcourtman/xcprobe/internal/xcerror"
)

// LocalExecutor runs allowlisted commands on the machine the collector is
// running on, grounded on the teacher's execCommand/execCommandWithLimits
// shape in cmd/pulse-sensor-proxy/ssh.go but simplified: evidence
// truncation is internal/evidence's job, not the transport's.
type LocalExecutor struct{}

// NewLocalExecutor constructs a LocalExecutor.
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{}
}

// Execute implements Transport.
func (e *LocalExecutor) Execute(ctx context.Context, cmd Command) (Result, error) {
	args, allRejected := ValidateArgs(cmd.Args)
	if allRejected {
		return Result{}, xcerror.New(xcerror.Unsupported, "all arguments rejected by allowlist grammar").
			WithMember(cmd.Name)
	}

	start := time.Now()
	c := exec.CommandContext(ctx, cmd.Name, args...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	runErr := c.Run()
	duration := time.Since(start)

	if ctx.Err() != nil {
		return Result{ExitCode: -1, Stdout: stdout.String(), Stderr: stderr.String(), Duration: duration},
			xcerror.Wrap(xcerror.TransportTimeout, "command timed out: "+cmd.Name, ctx.Err())
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{Duration: duration}, xcerror.Wrap(xcerror.Unsupported, "failed to start command: "+cmd.Name, runErr)
		}
	}

	return Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}, nil
}
