// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides functionality similar to standard log package with some extensions:
//   - verbosity levels
//   - global verbosity setting that can be used by multiple packages
//   - a shared output mutex, so that multi-line reports (worker job footers,
//     pulse lines) are not interleaved with other output
//   - ability to cache recent output in memory
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu           sync.Mutex
	verbosity    = 1
	out          io.Writer = os.Stderr
	cacheMem     int
	cacheMaxMem  int
	cachePos     int
	cacheEntries []string
	prependTime  = true // for testing
)

// SetVerbosity sets the global verbosity level, normally once at startup
// from the -verbosity flag.
func SetVerbosity(v int) {
	mu.Lock()
	defer mu.Unlock()
	verbosity = v
}

// SetOutput redirects all output, used by close_fd_mask handling and tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// EnableLogCaching enables in memory caching of log output.
// Caches up to maxLines, but no more than maxMem bytes.
// Cached output can later be queried with CachedLogOutput.
func EnableLogCaching(maxLines, maxMem int) {
	mu.Lock()
	defer mu.Unlock()
	if cacheEntries != nil {
		panic("log caching is already enabled")
	}
	if maxLines < 1 || maxMem < 1 {
		panic("invalid maxLines/maxMem")
	}
	cacheMaxMem = maxMem
	cacheEntries = make([]string, maxLines)
}

// CachedLogOutput retrieves cached log output.
func CachedLogOutput() string {
	mu.Lock()
	defer mu.Unlock()
	buf := new(bytes.Buffer)
	for i := range cacheEntries {
		pos := (cachePos + i) % len(cacheEntries)
		if cacheEntries[pos] == "" {
			continue
		}
		buf.WriteString(cacheEntries[pos])
		buf.Write([]byte{'\n'})
	}
	return buf.String()
}

// Logf prints the message if v is not above the current verbosity level.
// Messages with v <= 1 are also cached when caching is enabled.
func Logf(v int, msg string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if cacheEntries != nil && v <= 1 {
		cacheMem -= len(cacheEntries[cachePos])
		if cacheMem < 0 {
			panic("log cache size underflow")
		}
		timeStr := ""
		if prependTime {
			timeStr = time.Now().Format("2006/01/02 15:04:05 ")
		}
		cacheEntries[cachePos] = fmt.Sprintf(timeStr+msg, args...)
		cacheMem += len(cacheEntries[cachePos])
		cachePos++
		if cachePos == len(cacheEntries) {
			cachePos = 0
		}
		for i := 0; i < len(cacheEntries)-1 && cacheMem > cacheMaxMem; i++ {
			pos := (cachePos + i) % len(cacheEntries)
			cacheMem -= len(cacheEntries[pos])
			cacheEntries[pos] = ""
		}
		if cacheMem < 0 {
			panic("log cache size underflow")
		}
	}
	if v <= verbosity {
		fmt.Fprintf(out, msg+"\n", args...)
	}
}

// Printf prints unconditionally, without a verbosity gate. Used for user-facing
// driver output (help, mode banners, ERROR: lines).
func Printf(msg string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, msg, args...)
}

// Locked runs fn with the output mutex held. Multi-line output produced
// inside fn via Direct is atomic relative to other log calls.
func Locked(fn func(w io.Writer)) {
	mu.Lock()
	defer mu.Unlock()
	fn(out)
}

func Fatalf(msg string, args ...interface{}) {
	Printf("ERROR: "+msg+"\n", args...)
	os.Exit(1)
}

type VerboseWriter int

func (w VerboseWriter) Write(data []byte) (int, error) {
	Logf(int(w), "%s", data)
	return len(data), nil
}
