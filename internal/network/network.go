// Package network joins the wireless network before the broker session starts.
package network

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"sensor_gateway/internal/faults"
)

// AssociateTimeout bounds a single association attempt.
const AssociateTimeout = 10 * time.Second

// Associator joins a wireless network.
type Associator interface {
	Associate(ctx context.Context, ssid, password string) error
}

// Runner executes a command with stdin fed to it and returns its combined output.
type Runner func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	return cmd.CombinedOutput()
}

// NMCLI associates through NetworkManager's command line client.
type NMCLI struct {
	run     Runner
	timeout time.Duration
}

// NewNMCLI returns an Associator using nmcli. A nil runner executes the real binary.
func NewNMCLI(run Runner) *NMCLI {
	if run == nil {
		run = execRunner
	}
	return &NMCLI{run: run, timeout: AssociateTimeout}
}

// Associate connects to ssid. Every failure is a connection fault.
// The password is answered on stdin to the --ask prompt so it never shows
// up in the process table.
func (n *NMCLI) Associate(ctx context.Context, ssid, password string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	args := []string{
		"--wait", fmt.Sprintf("%d", int(n.timeout/time.Second)),
	}
	stdin := ""
	if password != "" {
		args = append(args, "--ask")
		stdin = password + "\n"
	}
	args = append(args, "device", "wifi", "connect", ssid)
	out, err := n.run(ctx, stdin, "nmcli", args...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return faults.Connection("associate "+ssid, err)
		}
		return faults.Connection("associate "+ssid, fmt.Errorf("%w: %s", err, msg))
	}
	return nil
}

// Preconfigured is used when the operating system already manages the link.
type Preconfigured struct{}

func (Preconfigured) Associate(context.Context, string, string) error { return nil }
