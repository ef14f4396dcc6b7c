// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/fuzzdriver/pkg/corpus"
	"github.com/google/fuzzdriver/pkg/fuzzer/mutate"
	"github.com/google/fuzzdriver/pkg/osutil"
)

func newTestFuzzer(t *testing.T, cb Callback, opts Options, tpc *TracePC) *Fuzzer {
	t.Helper()
	rnd := rand.New(rand.NewSource(0))
	md := mutate.NewDispatcher(rnd, mutate.Options{
		MaxLen:      64,
		MutateDepth: 5,
		DoCrossOver: true,
	}, nil)
	ic := corpus.NewInputCorpus(opts.OutputCorpus, corpus.EntropicOptions{})
	return New(cb, ic, md, opts, tpc)
}

func TestExecuteCallbackCollectsFeatures(t *testing.T) {
	tpc := NewTracePC(true)
	cb := func(data []byte) int {
		for i := range data {
			tpc.RecordEdge(uint32(data[i]))
		}
		return 0
	}
	fz := newTestFuzzer(t, cb, Options{MaxNumberOfRuns: -1}, tpc)
	res, sign := fz.ExecuteCallback([]byte{1, 2, 2})
	assert.Equal(t, 0, res)
	// Edge 1 hit once, edge 2 hit twice (bucket 1).
	if diff := cmp.Diff([]uint32{1 * 8, 2*8 + 1}, sign.ToRaw()); diff != "" {
		t.Fatal(diff)
	}
	assert.Equal(t, 1, fz.TotalNumberOfRuns())
}

func TestLoopStopsOnRunBudget(t *testing.T) {
	tpc := NewTracePC(true)
	execs := 0
	cb := func(data []byte) int {
		execs++
		if len(data) > 0 {
			tpc.RecordEdge(uint32(data[0]))
		}
		return 0
	}
	fz := newTestFuzzer(t, cb, Options{
		MaxNumberOfRuns: 50,
		ShuffleAtStartUp: true,
		PreferSmall:      true,
	}, tpc)
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed")
	require.NoError(t, osutil.WriteFile(seed, []byte("hello")))
	fz.Loop([]osutil.SizedFile{{Path: seed, Size: 5}})
	assert.GreaterOrEqual(t, execs, 50)
	assert.LessOrEqual(t, execs, 51)
	assert.GreaterOrEqual(t, fz.Corpus().Size(), 1)
}

func TestLoopWritesNewUnitsToOutputCorpus(t *testing.T) {
	tpc := NewTracePC(true)
	cb := func(data []byte) int {
		if len(data) > 0 {
			tpc.RecordEdge(uint32(data[0]))
		}
		return 0
	}
	dir := t.TempDir()
	fz := newTestFuzzer(t, cb, Options{
		MaxNumberOfRuns: 200,
		OutputCorpus:    dir,
	}, tpc)
	fz.Loop(nil)
	var files []osutil.SizedFile
	require.NoError(t, osutil.GetSizedFilesFromDir(dir, &files))
	assert.NotEmpty(t, files)
}

func TestRejectedInputsNotAddedToCorpus(t *testing.T) {
	tpc := NewTracePC(true)
	cb := func(data []byte) int {
		tpc.RecordEdge(7)
		return -1
	}
	fz := newTestFuzzer(t, cb, Options{MaxNumberOfRuns: 10}, tpc)
	fz.Loop(nil)
	assert.Equal(t, 0, fz.Corpus().Size())
}

func TestMinimizeCrashLoopNoCrash(t *testing.T) {
	tpc := NewTracePC(true)
	cb := func(data []byte) int { return 0 }
	fz := newTestFuzzer(t, cb, Options{MaxNumberOfRuns: 30}, tpc)
	data := []byte("some crashing input")
	fz.SetMaxInputLen(len(data))
	fz.SetMaxMutationLen(len(data) - 1)
	// Target never crashes, so the loop must return after the run budget.
	fz.MinimizeCrashLoop(data)
	assert.GreaterOrEqual(t, fz.TotalNumberOfRuns(), 30)
}

func TestDedupToken(t *testing.T) {
	assert.Equal(t, "index out of range", dedupToken("index out of range"))
	assert.Equal(t, "first line", dedupToken("first line\nsecond line"))
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, dedupToken(string(long)), 128)
}

func TestExecuteUnitForMerge(t *testing.T) {
	tpc := NewTracePC(true)
	cb := func(data []byte) int {
		tpc.RecordEdge(5)
		return 0
	}
	fz := newTestFuzzer(t, cb, Options{MaxNumberOfRuns: -1}, tpc)
	features, cov := fz.ExecuteUnitForMerge([]byte("x"))
	if diff := cmp.Diff([]uint32{5 * 8}, features); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff([]uint32{5}, cov); diff != "" {
		t.Fatal(diff)
	}
}

func TestCounterBucket(t *testing.T) {
	tests := []struct {
		cnt  uint32
		want uint32
	}{
		{1, 0}, {2, 1}, {3, 2}, {4, 3}, {7, 3}, {8, 4},
		{15, 4}, {16, 5}, {31, 5}, {32, 6}, {127, 6}, {128, 7}, {1000, 7},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, counterBucket(test.cnt), "cnt=%v", test.cnt)
	}
}

func TestTracePCObservedPCs(t *testing.T) {
	tpc := NewTracePC(false)
	tpc.RecordEdge(3)
	tpc.RecordEdge(1)
	tpc.UpdateObservedPCs()
	tpc.Reset()
	tpc.RecordEdge(2)
	tpc.UpdateObservedPCs()
	if diff := cmp.Diff([]uint32{1, 2, 3}, tpc.ObservedPCs()); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff([]uint32{2}, tpc.CurrentPCs()); diff != "" {
		t.Fatal(diff)
	}
}
