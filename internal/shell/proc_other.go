//go:build !unix

package shell

import "os/exec"

// killGroup keeps the default cancellation, which kills the shell only.
// WaitDelay still releases pipes held by its children.
func killGroup(cmd *exec.Cmd) {}
