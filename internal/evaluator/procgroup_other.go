//go:build !unix

package evaluator

import "os/exec"

// killProcessGroup keeps the default cancel; WaitDelay bounds the wait.
func killProcessGroup(cmd *exec.Cmd) {}
