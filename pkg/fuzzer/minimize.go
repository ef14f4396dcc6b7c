// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"time"

	"github.com/google/fuzzdriver/pkg/log"
)

// MinimizeCrashLoop is the inner step of crash minimization. It mutates the
// unit under a max-mutation-len bound strictly smaller than the unit and
// executes each candidate. If a candidate crashes, the crash path dumps it
// to the exact artifact path and exits the process with a non-zero status,
// which the outer minimization driver interprets as a successful reduction.
// Returning normally means no smaller crashing input was found.
func (f *Fuzzer) MinimizeCrashLoop(data []byte) {
	if len(data) <= 1 {
		return
	}
	rnd := f.md.Rand()
	deadline := time.Time{}
	if f.opts.MaxTotalTimeSec > 0 {
		deadline = f.startTime.Add(time.Duration(f.opts.MaxTotalTimeSec) * time.Second)
	}
	for !f.budgetExhausted() {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return
		}
		candidate := f.md.Mutate(data, f.maxMutationLen)
		if len(candidate) == 0 || len(candidate) >= len(data) {
			// Try harder to shrink: drop a random chunk.
			if len(data) > 1 {
				pos := rnd.Intn(len(data) - 1)
				n := rnd.Intn(len(data)-pos-1) + 1
				candidate = append(append([]byte(nil), data[:pos]...), data[pos+n:]...)
			}
		}
		if len(candidate) == 0 {
			continue
		}
		// A crashing candidate never returns from ExecuteCallback.
		f.ExecuteCallback(candidate)
	}
	log.Logf(1, "minimize loop budget exhausted after %v runs", f.runs)
}
