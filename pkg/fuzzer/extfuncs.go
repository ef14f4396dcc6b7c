// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

// Callback is the user-supplied target entry point. A panic inside the
// callback is a crash; a negative return value asks the fuzzer not to add
// the input to the corpus.
type Callback func(data []byte) int

// ExternalFunctions is the record of optional hooks the target may provide.
// Presence is detected by non-nil fields.
type ExternalFunctions struct {
	// Initialize is called once before flag parsing; it may rewrite the
	// argument vector (but not args[0]).
	Initialize func(args *[]string)
	// CustomMutator replaces the built-in mutation strategy.
	CustomMutator func(data []byte, maxSize int, seed uint32) []byte
	// CustomCrossOver is a hook for a target-supplied crossover. The driver
	// does not pass it to the mutation dispatcher; crossover always uses the
	// built-in Dispatcher.CrossOver.
	CustomCrossOver func(data1, data2 []byte, maxOutSize int, seed uint32) []byte
	// Tracer receives coverage from the instrumented target. If nil the
	// fuzzer installs its own TracePC that targets can reach via the
	// fuzzer instance.
	Tracer *TracePC
}
