package transport

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	sshknownhosts "golang.org/x/crypto/ssh/knownhosts"

	"github.com/rcourtman/xcprobe/internal/ssh/knownhosts"
	"github.com/rcourtman/xcprobe/internal/xcerror"
)

// SSHExecutor runs allowlisted commands on a remote target over SSH,
// grounded on cmd/pulse-sensor-proxy/ssh.go's host-key-then-connect shape,
// but using golang.org/x/crypto/ssh directly instead of shelling out to the
// ssh binary, since the collector has no forced-command wrapper to lean on.
type SSHExecutor struct {
	client *ssh.Client
}

// DialSSH ensures the target's host key is present in hostKeys' managed
// known_hosts file (keyscanning it on first contact), then opens an SSH
// connection authenticated with signer.
func DialSSH(ctx context.Context, addr, user string, signer ssh.Signer, hostKeys knownhosts.Manager) (*SSHExecutor, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		host, portStr = addr, "22"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		port = 22
	}

	if err := hostKeys.EnsureWithPort(ctx, host, port); err != nil {
		return nil, xcerror.Wrap(xcerror.TransportTimeout, "ensure host key for "+host, err)
	}

	callback, err := sshknownhosts.New(hostKeys.Path())
	if err != nil {
		return nil, xcerror.Wrap(xcerror.Unsupported, "load known_hosts "+hostKeys.Path(), err)
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: callback,
		Timeout:         10 * time.Second,
	}

	dialAddr := net.JoinHostPort(host, strconv.Itoa(port))
	client, err := ssh.Dial("tcp", dialAddr, config)
	if err != nil {
		return nil, xcerror.Wrap(xcerror.TransportTimeout, "ssh dial "+dialAddr, err)
	}
	return &SSHExecutor{client: client}, nil
}

// Close closes the underlying SSH connection.
func (e *SSHExecutor) Close() error {
	return e.client.Close()
}

// Execute implements Transport. Arguments are joined with spaces rather
// than shell-quoted: ValidateArgs' allowlist grammar already excludes every
// byte a shell treats specially, so there is nothing to escape.
func (e *SSHExecutor) Execute(ctx context.Context, cmd Command) (Result, error) {
	args, allRejected := ValidateArgs(cmd.Args)
	if allRejected {
		return Result{}, xcerror.New(xcerror.Unsupported, "all arguments rejected by allowlist grammar").
			WithMember(cmd.Name)
	}

	session, err := e.client.NewSession()
	if err != nil {
		return Result{}, xcerror.Wrap(xcerror.TransportTimeout, "open ssh session for "+cmd.Name, err)
	}
	defer session.Close()

	line := strings.TrimSpace(cmd.Name + " " + strings.Join(args, " "))

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	start := time.Now()
	go func() { done <- session.Run(line) }()

	var runErr error
	select {
	case <-ctx.Done():
		session.Close()
		<-done
		duration := time.Since(start)
		return Result{ExitCode: -1, Stdout: stdout.String(), Stderr: stderr.String(), Duration: duration},
			xcerror.Wrap(xcerror.TransportTimeout, "command timed out: "+cmd.Name, ctx.Err())
	case runErr = <-done:
	}
	duration := time.Since(start)

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
		} else {
			return Result{Duration: duration}, xcerror.Wrap(xcerror.TransportTimeout, "ssh command failed: "+cmd.Name, runErr)
		}
	}

	return Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}, nil
}
