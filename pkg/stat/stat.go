// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package stat provides prometheus/streamz style metrics (Val type) for
// instrumenting the fuzzing loop, and a registry with a global default
// instance. Final stats printing iterates the registry.
package stat

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VividCortex/gohistogram"
	"github.com/prometheus/client_golang/prometheus"
)

type UI struct {
	Name  string
	Desc  string
	Value string
	V     int
}

func New(name, desc string, opts ...any) *Val {
	return global.New(name, desc, opts...)
}

func Collect() []UI {
	return global.Collect()
}

var global = newSet()

type set struct {
	mu        sync.Mutex
	vals      map[string]*Val
	startTime time.Time
}

func newSet() *set {
	return &set{
		vals:      make(map[string]*Val),
		startTime: time.Now(),
	}
}

// Rate says to show the metric's per-second rate next to its total.
type Rate struct{}

// Distribution says to additionally collect a histogram of individual samples.
type Distribution struct{}

// Prometheus exports the metric under the given name.
type Prometheus string

func (s *set) New(name, desc string, opts ...any) *Val {
	v := &Val{
		name: name,
		desc: desc,
		fmt:  func(v int, period time.Duration) string { return strconv.Itoa(v) },
	}
	for _, o := range opts {
		switch opt := o.(type) {
		case Rate:
			v.fmt = formatRate
		case Distribution:
			v.hist = gohistogram.NewHistogram(255)
		case func() int:
			v.ext = opt
		case func(int, time.Duration) string:
			v.fmt = opt
		case Prometheus:
			prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: string(opt),
				Help: desc,
			},
				func() float64 { return float64(v.Val()) },
			))
		default:
			panic(fmt.Sprintf("unknown stats option %#v", o))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[name] = v
	return v
}

func (s *set) Collect() []UI {
	s.mu.Lock()
	defer s.mu.Unlock()
	period := time.Since(s.startTime)
	if period < time.Second {
		period = time.Second
	}
	var res []UI
	for _, v := range s.vals {
		val := v.Val()
		res = append(res, UI{
			Name:  v.name,
			Desc:  v.desc,
			Value: v.fmt(val, period),
			V:     val,
		})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

func formatRate(v int, period time.Duration) string {
	secs := int(period.Seconds())
	if secs == 0 {
		secs = 1
	}
	return fmt.Sprintf("%v (%v/sec)", v, v/secs)
}

type Val struct {
	name   string
	desc   string
	val    atomic.Int64
	ext    func() int
	fmt    func(int, time.Duration) string
	histMu sync.Mutex
	hist   *gohistogram.NumericHistogram
}

func (v *Val) Add(x int) {
	if v.ext != nil {
		panic(fmt.Sprintf("stat %v is in external mode", v.name))
	}
	v.val.Add(int64(x))
	if v.hist != nil {
		v.histMu.Lock()
		v.hist.Add(float64(x))
		v.histMu.Unlock()
	}
}

func (v *Val) Val() int {
	if v.ext != nil {
		return v.ext()
	}
	return int(v.val.Load())
}

// Quantile returns an approximate sample quantile for Distribution metrics.
func (v *Val) Quantile(q float64) float64 {
	if v.hist == nil {
		return 0
	}
	v.histMu.Lock()
	defer v.histMu.Unlock()
	return v.hist.Quantile(q)
}
