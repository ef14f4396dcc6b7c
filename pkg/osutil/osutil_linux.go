// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// DevNull returns the platform null device path.
func DevNull() string {
	return os.DevNull
}

// GetPeakRSSMb returns the peak resident set size of the process in Mb.
func GetPeakRSSMb() int {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	// ru_maxrss is in Kb on Linux.
	return int(ru.Maxrss >> 10)
}

// setPdeathsig makes the child die together with the parent, so that
// orphaned worker subprocesses do not outlive an aborted fuzzing session.
func setPdeathsig(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = new(syscall.SysProcAttr)
	}
	cmd.SysProcAttr.Pdeathsig = syscall.SIGKILL
}

// DupAndCloseStderr redirects stderr to the null device, returning the old
// stderr duplicated onto a new descriptor so that diagnostics can still go
// somewhere if needed.
func DupAndCloseStderr() *os.File {
	fd, err := unix.Dup(int(os.Stderr.Fd()))
	if err != nil {
		return nil
	}
	old := os.NewFile(uintptr(fd), "stderr")
	null, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return old
	}
	unix.Dup3(int(null.Fd()), int(os.Stderr.Fd()), 0)
	return old
}

// CloseStdout redirects stdout to the null device.
func CloseStdout() {
	null, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return
	}
	unix.Dup3(int(null.Fd()), int(os.Stdout.Fd()), 0)
}
