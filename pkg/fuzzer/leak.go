// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"runtime"
	"sync"
)

var (
	heapMu       sync.Mutex
	lastHeapLive uint64
)

// liveHeapGrowth returns how much the live heap grew since the previous
// probe, after forcing a GC cycle so that garbage does not count.
func liveHeapGrowth() int64 {
	heapMu.Lock()
	defer heapMu.Unlock()
	runtime.GC()
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	live := ms.HeapAlloc
	prev := lastHeapLive
	lastHeapLive = live
	if prev == 0 {
		return 0
	}
	return int64(live) - int64(prev)
}
