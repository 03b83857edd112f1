//go:build !linux

package recovery

import "errors"

var errUnsupported = errors.New("restart is only supported on linux")

// SystemActions is a placeholder on platforms without reboot or exec
// support; the policy falls through to exiting the process.
type SystemActions struct{}

func (SystemActions) HardReset() error  { return errUnsupported }
func (SystemActions) SoftReload() error { return errUnsupported }
