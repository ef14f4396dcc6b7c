// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

//go:build !linux

package osutil

import (
	"os"
	"os/exec"
)

func DevNull() string {
	return os.DevNull
}

func GetPeakRSSMb() int {
	return 0
}

func setPdeathsig(cmd *exec.Cmd) {
}

func DupAndCloseStderr() *os.File {
	return nil
}

func CloseStdout() {
}
