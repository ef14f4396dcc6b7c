// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"sort"
	"sync"

	"github.com/google/fuzzdriver/pkg/signal"
)

// TracePC accumulates the coverage signal reported by the instrumented
// target during one callback execution. Instrumentation calls RecordEdge for
// every executed edge; the fuzzer derives features from (edge, counter
// bucket) pairs the way sanitizer-coverage counters are bucketed.
type TracePC struct {
	mu          sync.Mutex
	counters    map[uint32]uint32
	useCounters bool
	observedPCs map[uint32]struct{}
}

func NewTracePC(useCounters bool) *TracePC {
	return &TracePC{
		counters:    make(map[uint32]uint32),
		useCounters: useCounters,
		observedPCs: make(map[uint32]struct{}),
	}
}

// RecordEdge is the entry point for instrumented targets.
func (t *TracePC) RecordEdge(pc uint32) {
	t.mu.Lock()
	t.counters[pc]++
	t.mu.Unlock()
}

// Reset clears per-execution counters; observed PCs persist.
func (t *TracePC) Reset() {
	t.mu.Lock()
	t.counters = make(map[uint32]uint32)
	t.mu.Unlock()
}

// CollectFeatures converts the current counters into the feature signal.
// A feature is the edge id times 8; with counters enabled the log2 bucket
// (0..7) of the edge's counter is added to it.
func (t *TracePC) CollectFeatures() signal.Signal {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.counters) == 0 {
		return nil
	}
	s := make(signal.Signal, len(t.counters))
	for pc, cnt := range t.counters {
		feature := pc * 8
		if t.useCounters {
			feature += counterBucket(cnt)
		}
		s[signal.Feature(feature)] = struct{}{}
	}
	return s
}

// UpdateObservedPCs folds the current counters into the set of ever-observed
// PCs; used by the full-coverage reporting path.
func (t *TracePC) UpdateObservedPCs() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for pc := range t.counters {
		t.observedPCs[pc] = struct{}{}
	}
}

func (t *TracePC) ObservedPCs() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	pcs := make([]uint32, 0, len(t.observedPCs))
	for pc := range t.observedPCs {
		pcs = append(pcs, pc)
	}
	sort.Slice(pcs, func(i, j int) bool { return pcs[i] < pcs[j] })
	return pcs
}

// CurrentPCs returns the PCs hit during the last execution.
func (t *TracePC) CurrentPCs() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	pcs := make([]uint32, 0, len(t.counters))
	for pc := range t.counters {
		pcs = append(pcs, pc)
	}
	sort.Slice(pcs, func(i, j int) bool { return pcs[i] < pcs[j] })
	return pcs
}

func counterBucket(cnt uint32) uint32 {
	switch {
	case cnt >= 128:
		return 7
	case cnt >= 32:
		return 6
	case cnt >= 16:
		return 5
	case cnt >= 8:
		return 4
	case cnt >= 4:
		return 3
	case cnt >= 3:
		return 2
	case cnt >= 2:
		return 1
	default:
		return 0
	}
}
