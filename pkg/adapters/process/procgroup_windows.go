//go:build windows

package process

import "os/exec"

// killGroup keeps the default cancellation, which kills the direct child.
// WaitDelay still bounds the wait on pipes held by grandchildren.
func killGroup(cmd *exec.Cmd) {}
