// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package flags

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestMyStol(t *testing.T) {
	tests := []struct {
		str  string
		want int64
	}{
		{"", 0},
		{"-", 0},
		{"0", 0},
		{"123", 123},
		{"123x4", 123},
		{"-7", -7},
		{"-7x", -7},
		{"x", 0},
		{"2147483647", 2147483647},
	}
	for _, test := range tests {
		t.Run(test.str, func(t *testing.T) {
			assert.Equal(t, test.want, MyStol(test.str))
		})
	}
}

func TestFlagValue(t *testing.T) {
	tests := []struct {
		param string
		name  string
		value string
		ok    bool
	}{
		{"-foo=bar", "foo", "bar", true},
		{"-foo=", "foo", "", true},
		{"--foo=bar", "foo", "", false},
		{"-foobar=x", "foo", "", false},
		{"-fo=x", "foo", "", false},
		{"foo=bar", "foo", "", false},
		{"-foo", "foo", "", false},
	}
	for _, test := range tests {
		t.Run(test.param, func(t *testing.T) {
			value, ok := FlagValue(test.param, test.name)
			assert.Equal(t, test.ok, ok)
			assert.Equal(t, test.value, value)
		})
	}
}

func TestCloneArgsWithoutX(t *testing.T) {
	args := []string{"fuzz", "-jobs=3", "corpus", "-workers=2", "-runs=10", "file"}
	got := CloneArgsWithoutX(args, "jobs", "workers")
	want := []string{"fuzz", "corpus", "-runs=10", "file"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseFlagsDefaults(t *testing.T) {
	f, inputs := ParseFlags([]string{"fuzz"}, false)
	assert.Empty(t, inputs)
	// Every field must hold its declared default.
	for _, d := range Registry(f) {
		switch {
		case d.IntFlag != nil:
			assert.Equal(t, d.Default, *d.IntFlag, d.Name)
		case d.UintFlag != nil:
			assert.Equal(t, uint(d.Default), *d.UintFlag, d.Name)
		case d.StrFlag != nil:
			assert.Equal(t, "", *d.StrFlag, d.Name)
		}
	}
	assert.Equal(t, 1, f.Verbosity)
	assert.Equal(t, -1, f.Runs)
	assert.Equal(t, 1200, f.Timeout)
	assert.Equal(t, 77, f.ErrorExitcode)
	assert.Equal(t, 2048, f.RssLimitMb)
	assert.Equal(t, uint(0xFF), f.EntropicFeatureFrequencyThreshold)
}

func TestParseFlagsValues(t *testing.T) {
	f, inputs := ParseFlags([]string{
		"fuzz", "-jobs=3", "-workers=2", "-runs=10", "-dict=words.txt",
		"-seed=42", "-max_len=77", "corpus1", "corpus2",
	}, false)
	assert.Equal(t, 3, f.Jobs)
	assert.Equal(t, 2, f.Workers)
	assert.Equal(t, 10, f.Runs)
	assert.Equal(t, "words.txt", f.Dict)
	assert.Equal(t, uint(42), f.Seed)
	assert.Equal(t, 77, f.MaxLen)
	if diff := cmp.Diff([]string{"corpus1", "corpus2"}, inputs); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseFlagsInputsNeverStartWithDash(t *testing.T) {
	f, inputs := ParseFlags([]string{
		"fuzz", "-no_such_flag=1", "--runs=5", "corpus", "-runs=7",
	}, false)
	assert.Equal(t, 7, f.Runs)
	for _, inp := range inputs {
		assert.False(t, strings.HasPrefix(inp, "-"), "input %q starts with '-'", inp)
	}
	if diff := cmp.Diff([]string{"corpus"}, inputs); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseFlagsIgnoreRemainingArgs(t *testing.T) {
	f, inputs := ParseFlags([]string{
		"fuzz", "-runs=5", "-ignore_remaining_args=1", "-runs=9", "corpus",
	}, false)
	assert.Equal(t, 5, f.Runs)
	assert.Empty(t, inputs)
}

func TestParseFlagsCustomMutator(t *testing.T) {
	f, _ := ParseFlags([]string{"fuzz"}, true)
	assert.Equal(t, 0, f.LenControl)
	f, _ = ParseFlags([]string{"fuzz", "-len_control=50"}, true)
	assert.Equal(t, 50, f.LenControl)
}

func TestRegistryUniqueNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, d := range Registry(new(Flags)) {
		if seen[d.Name] {
			t.Errorf("duplicate flag %v", d.Name)
		}
		seen[d.Name] = true
	}
}

func TestPrintHelp(t *testing.T) {
	buf := new(bytes.Buffer)
	PrintHelp("fuzz", buf)
	out := buf.String()
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "fuzz [-flag1=val1 [-flag2=val2 ...] ] [dir1 [dir2 ...] ]")
	assert.Contains(t, out, "max_len")
	// Internal flags are suppressed.
	assert.NotContains(t, out, "merge_inner")
	assert.NotContains(t, out, "features_dir")
	// Flags are printed in declaration order with their defaults.
	assert.Less(t, strings.Index(out, " verbosity"), strings.Index(out, " seed"))
	assert.Contains(t, out, fmt.Sprintf("%d\t%s", 1200, "Timeout in seconds"))
}
