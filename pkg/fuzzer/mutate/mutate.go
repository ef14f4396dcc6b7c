// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package mutate implements the byte-level mutation dispatcher.
package mutate

import (
	"math/rand"
)

// MaxWordSize bounds dictionary words; AddWordToManualDictionary silently
// drops oversize tokens.
const MaxWordSize = 64

// Options controls which mutations are applied.
type Options struct {
	MaxLen               int
	MutateDepth          int
	DoCrossOver          bool
	CrossOverUniformDist bool
	OnlyASCII            bool
}

// Word is a dictionary token usable as a mutation ingredient.
type Word []byte

// Dispatcher owns the PRNG and the mutation strategy. A custom mutator
// supplied by the target takes precedence over the built-in strategy.
type Dispatcher struct {
	rnd          *rand.Rand
	opts         Options
	manualDict   []Word
	customMutate func(data []byte, maxSize int, seed uint32) []byte
}

func NewDispatcher(rnd *rand.Rand, opts Options,
	customMutate func(data []byte, maxSize int, seed uint32) []byte) *Dispatcher {
	if opts.MutateDepth <= 0 {
		opts.MutateDepth = 5
	}
	return &Dispatcher{rnd: rnd, opts: opts, customMutate: customMutate}
}

func (md *Dispatcher) Rand() *rand.Rand {
	return md.rnd
}

// AddWordToManualDictionary registers a token from -dict for use in
// insert-word mutations.
func (md *Dispatcher) AddWordToManualDictionary(w Word) {
	if len(w) == 0 || len(w) > MaxWordSize {
		return
	}
	md.manualDict = append(md.manualDict, append(Word(nil), w...))
}

func (md *Dispatcher) ManualDictSize() int {
	return len(md.manualDict)
}

// Mutate produces a mutant of data bounded by maxLen. The input slice is not
// modified.
func (md *Dispatcher) Mutate(data []byte, maxLen int) []byte {
	if md.customMutate != nil {
		res := append([]byte(nil), data...)
		return md.customMutate(res, maxLen, md.rnd.Uint32())
	}
	res := append([]byte(nil), data...)
	depth := md.rnd.Intn(md.opts.MutateDepth) + 1
	for i := 0; i < depth; i++ {
		res = md.mutateOnce(res, maxLen)
	}
	if len(res) > maxLen {
		res = res[:maxLen]
	}
	if md.opts.OnlyASCII {
		toASCII(res)
	}
	return res
}

func (md *Dispatcher) mutateOnce(res []byte, maxLen int) []byte {
	switch md.rnd.Intn(6) {
	case 0: // erase bytes
		if len(res) > 0 {
			pos := md.rnd.Intn(len(res))
			n := md.rnd.Intn(len(res)-pos) + 1
			res = append(res[:pos], res[pos+n:]...)
		}
	case 1: // insert byte
		if len(res) < maxLen {
			pos := md.rnd.Intn(len(res) + 1)
			res = append(res, 0)
			copy(res[pos+1:], res[pos:])
			res[pos] = byte(md.rnd.Intn(256))
		}
	case 2: // change byte
		if len(res) > 0 {
			res[md.rnd.Intn(len(res))] = byte(md.rnd.Intn(256))
		}
	case 3: // flip bit
		if len(res) > 0 {
			res[md.rnd.Intn(len(res))] ^= 1 << uint(md.rnd.Intn(8))
		}
	case 4: // copy part of itself
		if len(res) > 1 {
			src := md.rnd.Intn(len(res))
			dst := md.rnd.Intn(len(res))
			n := md.rnd.Intn(len(res)-max(src, dst)) + 1
			copy(res[dst:dst+n], res[src:src+n])
		}
	case 5: // insert dictionary word
		if len(md.manualDict) > 0 {
			w := md.manualDict[md.rnd.Intn(len(md.manualDict))]
			if len(res)+len(w) <= maxLen {
				pos := md.rnd.Intn(len(res) + 1)
				res = append(res, w...)
				copy(res[pos+len(w):], res[pos:])
				copy(res[pos:], w)
			}
		}
	}
	return res
}

// CrossOver splices two units together, alternating random-length chunks.
func (md *Dispatcher) CrossOver(data0, data1 []byte, maxLen int) []byte {
	if !md.opts.DoCrossOver {
		return md.Mutate(data0, maxLen)
	}
	res := make([]byte, 0, len(data0)+len(data1))
	for i := md.rnd.Intn(3) + 1; i >= 0; i-- {
		if len(data0) > 0 {
			pos := md.rnd.Intn(len(data0)) + 1
			res = append(res, data0[:pos]...)
			data0 = data0[pos:]
		}
		if len(data1) > 0 {
			pos := md.rnd.Intn(len(data1)) + 1
			res = append(res, data1[:pos]...)
			data1 = data1[pos:]
		}
	}
	res = append(res, data0...)
	if len(res) > maxLen {
		res = res[:maxLen]
	}
	if md.opts.OnlyASCII {
		toASCII(res)
	}
	return res
}

func toASCII(data []byte) {
	for i, b := range data {
		if b >= 0x80 {
			data[i] = b & 0x7f
		}
		if data[i] < 0x20 && data[i] != '\n' && data[i] != '\t' {
			data[i] = ' '
		}
	}
}
