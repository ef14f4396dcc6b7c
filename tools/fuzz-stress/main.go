// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// fuzz-stress is a self-contained stress target for the driver: it links a
// deliberately buggy parser against the driver entry point. Useful for
// exercising the worker pool, crash minimization and cleansing end to end:
//
//	fuzz-stress -jobs=4 -workers=2 corpus/
//	fuzz-stress -minimize_crash=1 -runs=10000 crash-file
package main

import (
	"os"

	"github.com/google/fuzzdriver/pkg/driver"
	"github.com/google/fuzzdriver/pkg/fuzzer"
)

var tracer = fuzzer.NewTracePC(true)

// target crashes on inputs containing the magic token after a few
// coverage-gated prefixes, giving the evolution loop something to find.
func target(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	tracer.RecordEdge(1)
	if data[0] != 'F' {
		return 0
	}
	tracer.RecordEdge(2)
	if len(data) < 2 || data[1] != 'U' {
		return 0
	}
	tracer.RecordEdge(3)
	if len(data) < 3 || data[2] != 'Z' {
		return 0
	}
	tracer.RecordEdge(4)
	panic("found the magic token")
}

func main() {
	ef := &fuzzer.ExternalFunctions{Tracer: tracer}
	os.Exit(driver.FuzzerDriver(os.Args, target, ef))
}
