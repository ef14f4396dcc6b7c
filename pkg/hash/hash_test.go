// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashStable(t *testing.T) {
	assert.Equal(t, Hash([]byte("abc")), Hash([]byte("abc")))
	assert.NotEqual(t, Hash([]byte("abc")), Hash([]byte("abd")))
	// Hashing in pieces equals hashing the concatenation.
	assert.Equal(t, Hash([]byte("ab"), []byte("c")), Hash([]byte("abc")))
}

func TestStringRoundTrip(t *testing.T) {
	sig := Hash([]byte("unit"))
	str := sig.String()
	assert.Len(t, str, 40)
	parsed, err := FromString(str)
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)
}

func TestFromStringErrors(t *testing.T) {
	_, err := FromString("zz")
	assert.Error(t, err)
	_, err = FromString("abcd")
	assert.Error(t, err)
}
