// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package log

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerbosityGate(t *testing.T) {
	buf := new(bytes.Buffer)
	SetOutput(buf)
	defer SetOutput(os.Stderr)
	SetVerbosity(1)
	Logf(0, "always")
	Logf(1, "at level")
	Logf(2, "too verbose")
	out := buf.String()
	assert.Contains(t, out, "always")
	assert.Contains(t, out, "at level")
	assert.NotContains(t, out, "too verbose")
}

func TestLocked(t *testing.T) {
	buf := new(bytes.Buffer)
	SetOutput(buf)
	defer SetOutput(os.Stderr)
	Locked(func(w io.Writer) {
		io.WriteString(w, "line1\n")
		io.WriteString(w, "line2\n")
	})
	assert.Equal(t, "line1\nline2\n", buf.String())
}

func TestLogCaching(t *testing.T) {
	prependTime = false
	defer func() { prependTime = true }()
	EnableLogCaching(4, 1<<10)
	defer func() {
		cacheEntries = nil
		cacheMem = 0
		cachePos = 0
	}()
	SetOutput(io.Discard)
	defer SetOutput(os.Stderr)
	for i := 0; i < 6; i++ {
		Logf(0, "line%v", i)
	}
	out := CachedLogOutput()
	// Only the most recent maxLines survive.
	assert.False(t, strings.Contains(out, "line0"))
	assert.False(t, strings.Contains(out, "line1"))
	for i := 2; i < 6; i++ {
		assert.Contains(t, out, "line"+string(rune('0'+i)))
	}
}
