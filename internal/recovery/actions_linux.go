//go:build linux

package recovery

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// SystemActions reboots the machine or re-executes the current binary.
// Rebooting needs CAP_SYS_BOOT.
type SystemActions struct{}

func (SystemActions) HardReset() error {
	unix.Sync()
	if err := unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return nil
}

func (SystemActions) SoftReload() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	if err := unix.Exec(exe, os.Args, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", exe, err)
	}
	return nil
}
