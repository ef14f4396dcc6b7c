// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package signal

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestFromRawToRaw(t *testing.T) {
	s := FromRaw([]uint32{5, 3, 3, 9})
	assert.Equal(t, 3, s.Len())
	if diff := cmp.Diff([]uint32{3, 5, 9}, s.ToRaw()); diff != "" {
		t.Fatal(diff)
	}
	assert.Nil(t, FromRaw(nil))
}

func TestMergeDiff(t *testing.T) {
	var s Signal
	s.Merge(FromRaw([]uint32{1, 2}))
	s.Merge(FromRaw([]uint32{2, 3}))
	assert.Equal(t, 3, s.Len())

	diff := s.Diff(FromRaw([]uint32{3, 4, 5}))
	if d := cmp.Diff([]uint32{4, 5}, diff.ToRaw()); d != "" {
		t.Fatal(d)
	}
	assert.True(t, s.HasNew(FromRaw([]uint32{9})))
	assert.False(t, s.HasNew(FromRaw([]uint32{1, 3})))
}

func TestEqual(t *testing.T) {
	assert.True(t, FromRaw([]uint32{1, 2}).Equal(FromRaw([]uint32{2, 1})))
	assert.False(t, FromRaw([]uint32{1, 2}).Equal(FromRaw([]uint32{1})))
	assert.False(t, FromRaw([]uint32{1}).Equal(FromRaw([]uint32{2})))
	assert.True(t, Signal(nil).Equal(nil))
}

func TestCopyIsolated(t *testing.T) {
	s := FromRaw([]uint32{1})
	c := s.Copy()
	c.Merge(FromRaw([]uint32{2}))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, c.Len())
}
