// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/fuzzdriver/pkg/fuzzer"
	"github.com/google/fuzzdriver/pkg/osutil"
)

func chdir(t *testing.T, dir string) {
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestRunInMultipleProcesses(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a unix shell")
	}
	chdir(t, t.TempDir())
	args := []string{"/bin/sh", "-jobs=3", "-workers=2", "-c", "exit 0"}
	code := runInMultipleProcesses(args, 2, 3, 0)
	assert.Equal(t, 0, code)
	// Job IDs form the set {0, 1, 2}, each exactly once.
	for i := 0; i < 3; i++ {
		assert.True(t, osutil.IsFile(fmt.Sprintf("fuzz-%v.log", i)), "missing fuzz-%v.log", i)
	}
	assert.False(t, osutil.IsExist("fuzz-3.log"))
}

func TestRunInMultipleProcessesFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a unix shell")
	}
	chdir(t, t.TempDir())
	args := []string{"/bin/sh", "-c", "exit 7"}
	code := runInMultipleProcesses(args, 2, 2, 0)
	assert.Equal(t, 1, code)
}

func TestCleanseCrashInput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a unix shell")
	}
	dir := t.TempDir()
	// The "target" crashes iff the input still contains the essential byte.
	script := filepath.Join(dir, "target.sh")
	require.NoError(t, os.WriteFile(script,
		[]byte("#!/bin/sh\nif grep -q X \"$1\"; then exit 1; fi\nexit 0\n"), 0755))

	input := filepath.Join(dir, "crash")
	require.NoError(t, osutil.WriteFile(input, []byte("AXB")))
	out := filepath.Join(dir, "cleansed")

	opts := fuzzer.Options{ExactArtifactPath: out}
	code := cleanseCrashInput([]string{script, "-cleanse_crash=1", input}, []string{input}, opts)
	assert.Equal(t, 0, code)

	cleansed, err := os.ReadFile(out)
	require.NoError(t, err)
	// Only the essential byte survives; the others are replacement bytes.
	require.Len(t, cleansed, 3)
	assert.Equal(t, byte('X'), cleansed[1])
	for _, idx := range []int{0, 2} {
		assert.Contains(t, []byte{' ', 0xff}, cleansed[idx])
	}
	// The cleansed input still reproduces the crash.
	cmd := osutil.NewCommand([]string{script, out})
	assert.NotEqual(t, 0, cmd.Execute())
}
