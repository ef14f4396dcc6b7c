// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package driver

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/fuzzdriver/pkg/corpus"
	"github.com/google/fuzzdriver/pkg/flags"
	"github.com/google/fuzzdriver/pkg/fuzzer"
	"github.com/google/fuzzdriver/pkg/fuzzer/mutate"
	"github.com/google/fuzzdriver/pkg/log"
	"github.com/google/fuzzdriver/pkg/osutil"
)

func TestGetDedupTokenFromCmdOutput(t *testing.T) {
	tests := []struct {
		output string
		want   string
	}{
		{"xDEDUP_TOKEN:abc\nrest", "DEDUP_TOKEN:abc"},
		{"no marker here\n", ""},
		{"DEDUP_TOKEN:no-newline", ""},
		{"DEDUP_TOKEN:a\nDEDUP_TOKEN:b\n", "DEDUP_TOKEN:a"},
		{"", ""},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, getDedupTokenFromCmdOutput(test.output))
	}
}

func TestParseSeedInputs(t *testing.T) {
	// The list is split right-to-left, so the order is reversed.
	got := parseSeedInputs("a,b,c")
	if diff := cmp.Diff([]string{"c", "b", "a"}, got); diff != "" {
		t.Fatal(diff)
	}
	assert.Nil(t, parseSeedInputs(""))
}

func TestParseSeedInputsAtFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds")
	require.NoError(t, osutil.WriteFile(path, []byte("x,y")))
	got := parseSeedInputs("@" + path)
	if diff := cmp.Diff([]string{"y", "x"}, got); diff != "" {
		t.Fatal(diff)
	}
}

func TestAllInputsAreFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, osutil.WriteFile(file, []byte("x")))
	assert.False(t, allInputsAreFiles(nil))
	assert.True(t, allInputsAreFiles([]string{file}))
	assert.False(t, allInputsAreFiles([]string{file, dir}))
	assert.False(t, allInputsAreFiles([]string{filepath.Join(dir, "missing")}))
}

func TestValidateDirectoryExistsCreates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")
	validateDirectoryExists(path, true)
	assert.True(t, osutil.IsDir(path))
	// Existing directory passes regardless of the create toggle.
	validateDirectoryExists(path, false)
}

func TestBuildOptions(t *testing.T) {
	f, _ := flags.ParseFlags([]string{"fuzz", "-runs=5", "-minimize_crash=1"}, false)
	opts := buildOptions(f)
	assert.Equal(t, 5, opts.MaxNumberOfRuns)
	// malloc limit inherits the rss limit when unset.
	assert.Equal(t, opts.RssLimitMb, opts.MallocLimitMb)
	// SIGALRM handling is disabled while minimizing a crash.
	assert.False(t, opts.HandleAlrm)

	f, _ = flags.ParseFlags([]string{"fuzz", "-malloc_limit_mb=123"}, false)
	opts = buildOptions(f)
	assert.Equal(t, 123, opts.MallocLimitMb)
	assert.Equal(t, -1, opts.MaxNumberOfRuns)
	assert.True(t, opts.HandleAlrm)
	assert.Equal(t, 71, opts.OOMExitCode)
	assert.Equal(t, 72, opts.InterruptExitCode)
}

func TestMaskOccurrences(t *testing.T) {
	got := maskOccurrences([]byte("xxmagicxx"), []byte("magic"))
	want := []byte("xx")
	for _, b := range []byte("magic") {
		want = append(want, b^0xFF)
	}
	want = append(want, []byte("xx")...)
	assert.Equal(t, want, got)

	// Leftmost, non-overlapping occurrences.
	got = maskOccurrences([]byte("aaaa"), []byte("aa"))
	assert.Equal(t, []byte{'a' ^ 0xFF, 'a' ^ 0xFF, 'a' ^ 0xFF, 'a' ^ 0xFF}, got)

	// No occurrence leaves the unit untouched.
	got = maskOccurrences([]byte("abc"), []byte("zz"))
	assert.Equal(t, []byte("abc"), got)
}

func newAnalyzerFuzzer(tpc *fuzzer.TracePC, cb fuzzer.Callback) *fuzzer.Fuzzer {
	rnd := rand.New(rand.NewSource(0))
	md := mutate.NewDispatcher(rnd, mutate.Options{MaxLen: 64, MutateDepth: 5}, nil)
	ic := corpus.NewInputCorpus("", corpus.EntropicOptions{})
	return fuzzer.New(cb, ic, md, fuzzer.Options{MaxNumberOfRuns: -1}, tpc)
}

func TestDictionaryScores(t *testing.T) {
	tpc := fuzzer.NewTracePC(true)
	cb := func(data []byte) int {
		tpc.RecordEdge(1)
		if bytes.Contains(data, []byte("magic")) {
			tpc.RecordEdge(2)
		}
		return 0
	}
	fz := newAnalyzerFuzzer(tpc, cb)
	dictionary := [][]byte{[]byte("magic"), []byte("absent")}
	units := [][]byte{[]byte("xxmagicxx"), []byte("plain")}

	scores, usages := dictionaryScores(fz, dictionary, units)
	// Masking "magic" changes the feature set, so the token scores positive.
	assert.Equal(t, 2, scores[0])
	assert.Equal(t, 1, usages[0])
	// A token that appears in no unit has zero usage and zero score.
	assert.Equal(t, 0, scores[1])
	assert.Equal(t, 0, usages[1])
}

func TestDictionaryScoresUselessToken(t *testing.T) {
	tpc := fuzzer.NewTracePC(true)
	cb := func(data []byte) int {
		// Coverage does not depend on the input at all.
		tpc.RecordEdge(1)
		return 0
	}
	fz := newAnalyzerFuzzer(tpc, cb)
	scores, usages := dictionaryScores(fz, [][]byte{[]byte("dead")}, [][]byte{[]byte("xdeadx")})
	assert.Equal(t, -1, scores[0])
	assert.Equal(t, 1, usages[0])
}

func TestRunOneTestOrder(t *testing.T) {
	var runs []string
	tpc := fuzzer.NewTracePC(true)
	cb := func(data []byte) int {
		runs = append(runs, string(data))
		return 0
	}
	fz := newAnalyzerFuzzer(tpc, cb)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	require.NoError(t, osutil.WriteFile(a, []byte("aa")))
	require.NoError(t, osutil.WriteFile(b, []byte("bb")))
	opts := fuzzer.Options{MaxNumberOfRuns: -1}
	for _, path := range []string{a, a, b, b} {
		runOneTest(fz, path, opts)
	}
	if diff := cmp.Diff([]string{"aa", "aa", "bb", "bb"}, runs); diff != "" {
		t.Fatal(diff)
	}
	// Run-individual mode never adds to the corpus.
	assert.Equal(t, 0, fz.Corpus().Size())
}

func TestFuzzerDriverHelp(t *testing.T) {
	buf := new(bytes.Buffer)
	log.SetOutput(buf)
	defer log.SetOutput(os.Stderr)
	code := FuzzerDriver([]string{"fuzz", "-help=1"}, func(data []byte) int { return 0 }, nil)
	assert.Equal(t, 0, code)
	assert.Contains(t, buf.String(), "Usage:")
}
