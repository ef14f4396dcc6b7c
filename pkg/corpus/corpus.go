// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package corpus maintains the in-memory set of interesting inputs together
// with their coverage signal, and persists new inputs to the output corpus
// directory.
package corpus

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"

	"github.com/google/fuzzdriver/pkg/hash"
	"github.com/google/fuzzdriver/pkg/log"
	"github.com/google/fuzzdriver/pkg/osutil"
	"github.com/google/fuzzdriver/pkg/signal"
)

// EntropicOptions configures the entropic power schedule.
type EntropicOptions struct {
	Enabled                   bool
	FeatureFrequencyThreshold uint
	NumberOfRarestFeatures    uint
	ScalePerExecTime          bool
}

// Item is one unit of the corpus. Its Sig, Data, Signal and NumFeatures do
// not change after it is added; NumExecutedMutations is updated in place by
// NoteExecutedMutation.
type Item struct {
	Sig                  string
	Data                 []byte
	Signal               signal.Signal
	NumExecutedMutations int
	NumFeatures          int
}

type InputCorpus struct {
	mu        sync.RWMutex
	outputDir string
	entropic  EntropicOptions
	items     []*Item
	bySig     map[string]*Item
	maxSignal signal.Signal
	// Feature -> how often it was observed across all executions; drives
	// the rarity boost of the entropic schedule.
	featureFreq map[signal.Feature]uint32
}

func NewInputCorpus(outputDir string, entropic EntropicOptions) *InputCorpus {
	return &InputCorpus{
		outputDir:   outputDir,
		entropic:    entropic,
		bySig:       make(map[string]*Item),
		featureFreq: make(map[signal.Feature]uint32),
	}
}

func (c *InputCorpus) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *InputCorpus) TotalFeatures() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxSignal.Len()
}

// HasNewSignal reports whether sign contains features the corpus has not seen.
func (c *InputCorpus) HasNewSignal(sign signal.Signal) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxSignal.HasNew(sign)
}

// Add inserts the unit if it is not already present and merges its signal
// into the accumulated max signal. Returns the item and whether it was new.
func (c *InputCorpus) Add(data []byte, sign signal.Signal) (*Item, bool) {
	sig := hash.String(data)
	c.mu.Lock()
	defer c.mu.Unlock()
	if item := c.bySig[sig]; item != nil {
		c.maxSignal.Merge(sign)
		return item, false
	}
	item := &Item{
		Sig:         sig,
		Data:        append([]byte(nil), data...),
		Signal:      sign.Copy(),
		NumFeatures: sign.Len(),
	}
	c.items = append(c.items, item)
	c.bySig[sig] = item
	c.maxSignal.Merge(sign)
	return item, true
}

// ChooseItem picks a unit for mutation. With the entropic schedule enabled,
// items carrying rare features are proportionally more likely to be chosen;
// otherwise the distribution is uniform.
func (c *InputCorpus) ChooseItem(r *rand.Rand) *Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.items) == 0 {
		return nil
	}
	if !c.entropic.Enabled {
		return c.items[r.Intn(len(c.items))]
	}
	weights := make([]float64, len(c.items))
	total := 0.0
	for i, item := range c.items {
		w := c.energyLocked(item)
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return c.items[r.Intn(len(c.items))]
	}
	x := r.Float64() * total
	for i, w := range weights {
		x -= w
		if x <= 0 {
			return c.items[i]
		}
	}
	return c.items[len(c.items)-1]
}

func (c *InputCorpus) energyLocked(item *Item) float64 {
	rare := 0
	for e := range item.Signal {
		if uint(c.featureFreq[e]) < c.entropic.FeatureFrequencyThreshold {
			rare++
		}
	}
	// One extra unit so that a unit with no rare features still gets a turn.
	return float64(rare+1) / float64(item.NumExecutedMutations+1)
}

// UpdateFeatureFrequency records one more observation of the feature.
// The map is capped to bound memory: once it holds NumberOfRarestFeatures*16
// features, features not already in it are not tracked. Which features get
// tracked depends on the order they are first seen, not on their rarity.
func (c *InputCorpus) UpdateFeatureFrequency(e signal.Feature) {
	if !c.entropic.Enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.featureFreq[e]; !ok &&
		uint(len(c.featureFreq)) >= c.entropic.NumberOfRarestFeatures*16 {
		return
	}
	c.featureFreq[e]++
}

func (c *InputCorpus) NoteExecutedMutation(item *Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item.NumExecutedMutations++
}

// WriteToOutputCorpus persists the unit into the output corpus directory
// under its content hash. No-op if no output corpus was configured.
func (c *InputCorpus) WriteToOutputCorpus(data []byte) error {
	if c.outputDir == "" {
		return nil
	}
	path := filepath.Join(c.outputDir, hash.String(data))
	if err := osutil.WriteFile(path, data); err != nil {
		return fmt.Errorf("failed to write corpus unit: %w", err)
	}
	log.Logf(2, "NEW_UNIT: %v (%v bytes)", path, len(data))
	return nil
}

// Items returns a snapshot of the current items.
func (c *InputCorpus) Items() []*Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Item(nil), c.items...)
}
