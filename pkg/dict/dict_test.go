// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package dict

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntry(t *testing.T) {
	tests := []struct {
		line string
		want []byte
		ok   bool
	}{
		{`"abc"`, []byte("abc"), true},
		{`name="abc"`, []byte("abc"), true},
		{`kw1="foo\x0Abar"`, []byte("foo\nbar"), true},
		{`"\\"`, []byte(`\`), true},
		{`"\""`, []byte(`"`), true},
		{`""`, []byte{}, true},
		{`"\xff\x00"`, []byte{0xff, 0}, true},
		{`abc`, nil, false},
		{`"abc`, nil, false},
		{`"\q"`, nil, false},
		{`"\x1"`, nil, false},
		{`"\xzz"`, nil, false},
	}
	for _, test := range tests {
		t.Run(test.line, func(t *testing.T) {
			got, err := ParseEntry(test.line)
			if !test.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if len(test.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, test.want, got)
		})
	}
}

func TestParseFile(t *testing.T) {
	text := `
# AFL dictionary for the target.
kw1="magic"
kw2="\x00\x01"

"bare"
`
	units, err := ParseFile(text)
	require.NoError(t, err)
	want := [][]byte{[]byte("magic"), {0, 1}, []byte("bare")}
	if diff := cmp.Diff(want, units); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseFileError(t *testing.T) {
	_, err := ParseFile("kw1=\"ok\"\nbroken\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
