// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package driver

import (
	"bytes"

	"github.com/google/fuzzdriver/pkg/fuzzer"
	"github.com/google/fuzzdriver/pkg/log"
	"github.com/google/fuzzdriver/pkg/signal"
)

// analyzeDictionary scores every dictionary token by the coverage it is
// responsible for: for each corpus unit containing the token, the unit is
// re-executed with all occurrences XOR-masked; if the feature set does not
// change, the token was not contributing.
func analyzeDictionary(fz *fuzzer.Fuzzer, dictionary [][]byte, units [][]byte) {
	log.Printf("Started dictionary minimization (up to %v tests)\n",
		len(dictionary)*len(units)*2)

	scores, usages := dictionaryScores(fz, dictionary, units)

	log.Printf("###### Useless dictionary elements. ######\n")
	for i, word := range dictionary {
		// Dictionary units with positive score are treated as useful ones.
		if scores[i] > 0 {
			continue
		}
		log.Printf("%q # Score: %v, Used: %v\n", word, scores[i], usages[i])
	}
	log.Printf("###### End of useless dictionary elements. ######\n")
}

func dictionaryScores(fz *fuzzer.Fuzzer, dictionary, units [][]byte) (scores, usages []int) {
	scores = make([]int, len(dictionary))
	usages = make([]int, len(dictionary))
	for _, unit := range units {
		// Get coverage for the testcase without modifications.
		_, initial := fz.ExecuteCallback(unit)
		for i, word := range dictionary {
			if len(word) == 0 || !bytes.Contains(unit, word) {
				continue
			}
			usages[i]++
			masked := maskOccurrences(unit, word)
			_, modified := fz.ExecuteCallback(masked)
			if featuresEqual(initial, modified) {
				scores[i]--
			} else {
				scores[i] += 2
			}
		}
	}
	return scores, usages
}

// maskOccurrences returns a copy of unit with every non-overlapping,
// leftmost occurrence of word XOR-masked against 0xFF.
func maskOccurrences(unit, word []byte) []byte {
	data := append([]byte(nil), unit...)
	for pos := 0; ; {
		idx := bytes.Index(data[pos:], word)
		if idx < 0 {
			break
		}
		start := pos + idx
		for i := start; i < start+len(word); i++ {
			data[i] ^= 0xFF
		}
		pos = start + len(word)
	}
	return data
}

func featuresEqual(a, b signal.Signal) bool {
	return a.Equal(b)
}
