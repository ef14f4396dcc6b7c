// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package driver

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/fuzzdriver/pkg/osutil"
)

func TestReadCorpora(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	require.NoError(t, osutil.WriteFile(filepath.Join(dir1, "a"), []byte("aa")))
	require.NoError(t, osutil.WriteFile(filepath.Join(dir2, "b"), []byte("bbb")))
	seed := filepath.Join(t.TempDir(), "seed")
	require.NoError(t, osutil.WriteFile(seed, []byte("s")))

	files := readCorpora([]string{dir1, dir2}, []string{seed, filepath.Join(dir1, "missing")})
	require.Len(t, files, 3)
	paths := make(map[string]int64)
	for _, f := range files {
		paths[f.Path] = f.Size
	}
	assert.Equal(t, int64(2), paths[filepath.Join(dir1, "a")])
	assert.Equal(t, int64(3), paths[filepath.Join(dir2, "b")])
	assert.Equal(t, int64(1), paths[seed])
}

func TestReadCorporaUnits(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, osutil.WriteFile(filepath.Join(dir, "u1"), []byte("one")))
	require.NoError(t, osutil.WriteFile(filepath.Join(dir, "u2"), []byte("second")))
	units := readCorporaUnits([]string{dir})
	require.Len(t, units, 2)
	// Smallest unit comes first.
	assert.Equal(t, []byte("one"), units[0])
	assert.Equal(t, []byte("second"), units[1])
}
