// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package fuzzer implements the in-process fuzzing loop: callback execution,
// coverage collection, corpus evolution, crash reporting and the inner step
// of crash minimization.
package fuzzer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/fuzzdriver/pkg/corpus"
	"github.com/google/fuzzdriver/pkg/fuzzer/mutate"
	"github.com/google/fuzzdriver/pkg/hash"
	"github.com/google/fuzzdriver/pkg/log"
	"github.com/google/fuzzdriver/pkg/osutil"
	"github.com/google/fuzzdriver/pkg/signal"
	"github.com/google/fuzzdriver/pkg/stat"
)

const kDefaultMaxLen = 4096

type Fuzzer struct {
	callback Callback
	corpus   *corpus.InputCorpus
	md       *mutate.Dispatcher
	opts     Options
	tpc      *TracePC

	maxInputLen    int
	maxMutationLen int
	startTime      time.Time
	currentUnit    []byte
	runs           int

	statExecs      *stat.Val
	statNewUnits   *stat.Val
	statCrashes    *stat.Val
	statExecTimeUs *stat.Val
	statCover      *stat.Val
	statPeakRSS    *stat.Val
}

// New constructs the fuzzer singleton. The returned object is deliberately
// never destroyed; terminal modes exit the process while background monitor
// goroutines may still reference it.
func New(cb Callback, ic *corpus.InputCorpus, md *mutate.Dispatcher, opts Options, tpc *TracePC) *Fuzzer {
	if tpc == nil {
		tpc = NewTracePC(opts.UseCounters)
	}
	f := &Fuzzer{
		callback:       cb,
		corpus:         ic,
		md:             md,
		opts:           opts,
		tpc:            tpc,
		maxInputLen:    opts.MaxLen,
		maxMutationLen: opts.MaxLen,
		startTime:      time.Now(),
	}
	f.statExecs = stat.New("execs", "Number of executed inputs", stat.Rate{}, stat.Prometheus("fuzzer_execs"))
	f.statNewUnits = stat.New("new units", "Inputs added to the corpus", stat.Prometheus("fuzzer_new_units"))
	f.statCrashes = stat.New("crashes", "Observed crashes")
	f.statExecTimeUs = stat.New("exec time us", "Callback execution time (us)", stat.Distribution{})
	f.statCover = stat.New("cover", "Number of observed coverage features", func() int {
		return ic.TotalFeatures()
	}, stat.Prometheus("fuzzer_cover"))
	f.statPeakRSS = stat.New("peak rss mb", "Peak resident set size (Mb)", func() int {
		return osutil.GetPeakRSSMb()
	})
	return f
}

func (f *Fuzzer) TPC() *TracePC {
	return f.tpc
}

func (f *Fuzzer) GetMD() *mutate.Dispatcher {
	return f.md
}

func (f *Fuzzer) Corpus() *corpus.InputCorpus {
	return f.corpus
}

func (f *Fuzzer) TotalNumberOfRuns() int {
	return f.runs
}

func (f *Fuzzer) SecondsSinceProcessStartUp() int {
	return int(time.Since(f.startTime).Seconds())
}

func (f *Fuzzer) SetMaxInputLen(n int) {
	f.maxInputLen = n
	if f.maxMutationLen == 0 || f.maxMutationLen > n {
		f.maxMutationLen = n
	}
}

func (f *Fuzzer) SetMaxMutationLen(n int) {
	f.maxMutationLen = n
}

// ExecuteCallback runs the target once. A panic in the callback is treated
// as a crash: the crash is reported, the current unit is dumped as an
// artifact if artifacts are being saved, and the process exits with the
// configured error exit code.
// Returns the callback status and the collected coverage signal.
func (f *Fuzzer) ExecuteCallback(data []byte) (int, signal.Signal) {
	f.runs++
	f.currentUnit = data
	f.tpc.Reset()
	start := time.Now()
	res := f.runProtected(data)
	elapsed := time.Since(start)
	f.statExecs.Add(1)
	f.statExecTimeUs.Add(int(elapsed.Microseconds()))
	if f.opts.ReportSlowUnits > 0 && elapsed > time.Duration(f.opts.ReportSlowUnits)*time.Second {
		f.writeUnitAndReport(data, "slow-unit-", "Slow unit: %d seconds for processing", int(elapsed.Seconds()))
	}
	sign := f.tpc.CollectFeatures()
	for e := range sign {
		f.corpus.UpdateFeatureFrequency(e)
	}
	return res, sign
}

func (f *Fuzzer) runProtected(data []byte) int {
	defer func() {
		if r := recover(); r != nil {
			f.crashCallback(data, r)
		}
	}()
	return f.callback(data)
}

// crashCallback reports the crash and terminates the process; it never
// returns. The DEDUP_TOKEN line lets the outer minimization driver decide
// whether two crashes are the same bug.
func (f *Fuzzer) crashCallback(data []byte, panicValue any) {
	f.statCrashes.Add(1)
	log.Printf("==%v== ERROR: fuzz target exited with panic: %v\n", osutil.GetPid(), panicValue)
	log.Printf("DEDUP_TOKEN: %v\n", dedupToken(panicValue))
	log.Printf("SUMMARY: fuzz target crashed on input of %v bytes\n", len(data))
	if f.opts.SaveArtifacts {
		f.dumpCurrentUnit(data, "crash-")
	}
	f.PrintFinalStats()
	os.Exit(f.opts.ErrorExitCode)
}

// dedupToken derives a stable short crash signature from the panic value.
func dedupToken(panicValue any) string {
	msg := fmt.Sprint(panicValue)
	for i := 0; i < len(msg); i++ {
		if msg[i] == '\n' {
			msg = msg[:i]
			break
		}
	}
	const maxToken = 128
	if len(msg) > maxToken {
		msg = msg[:maxToken]
	}
	return msg
}

func (f *Fuzzer) dumpCurrentUnit(data []byte, prefix string) {
	path := f.opts.ExactArtifactPath
	if path == "" {
		path = f.opts.ArtifactPrefix + prefix + hash.String(data)
	}
	if err := osutil.WriteFile(path, data); err != nil {
		log.Printf("ERROR: failed to write artifact %v: %v\n", path, err)
		return
	}
	log.Printf("artifact_prefix='%v'; Test unit written to %v\n", f.opts.ArtifactPrefix, path)
}

func (f *Fuzzer) writeUnitAndReport(data []byte, prefix, msg string, args ...interface{}) {
	log.Printf(msg+"\n", args...)
	if f.opts.SaveArtifacts {
		f.dumpCurrentUnit(data, prefix)
	}
}

// TryDetectingAMemoryLeak probes for monotonic heap growth after running the
// unit. Go has no leak sanitizer; what we can observe is live heap that
// survives a GC cycle, which catches targets that accumulate global state.
func (f *Fuzzer) TryDetectingAMemoryLeak(data []byte) {
	if !f.opts.DetectLeaks {
		return
	}
	growth := liveHeapGrowth()
	if growth <= 0 {
		return
	}
	log.Logf(2, "INFO: live heap grew by %v bytes after unit of %v bytes", growth, len(data))
}

// TPCUpdateObservedPCs folds the last execution into the observed PC set.
func (f *Fuzzer) TPCUpdateObservedPCs() {
	f.tpc.UpdateObservedPCs()
}

// RssLimitCallback is invoked by the RSS monitor thread when the peak RSS
// exceeds the configured limit.
func (f *Fuzzer) RssLimitCallback() {
	log.Printf("==%v== ERROR: libFuzzer: out-of-memory (used: %vMb; limit: %vMb)\n",
		osutil.GetPid(), osutil.GetPeakRSSMb(), f.opts.RssLimitMb)
	log.Printf("   To change the out-of-memory limit use -rss_limit_mb=<N>\n\n")
	if f.opts.SaveArtifacts && len(f.currentUnit) > 0 {
		f.dumpCurrentUnit(f.currentUnit, "oom-")
	}
	f.PrintFinalStats()
	os.Exit(f.opts.OOMExitCode)
}

// Loop runs the main fuzzing loop over the gathered corpora until the run or
// time budget is exhausted or the stop file appears.
func (f *Fuzzer) Loop(corporaFiles []osutil.SizedFile) {
	f.readAndExecuteSeedCorpora(corporaFiles)
	log.Printf("INFO: %v units in corpus, %v features\n", f.corpus.Size(), f.corpus.TotalFeatures())
	rnd := f.md.Rand()
	lastReload := time.Now()
	for !f.budgetExhausted() {
		if f.stopRequested() {
			log.Printf("INFO: found %v, stopping\n", f.opts.StopFile)
			break
		}
		if f.opts.ReloadIntervalSec > 0 &&
			time.Since(lastReload) > time.Duration(f.opts.ReloadIntervalSec)*time.Second {
			f.reloadOutputCorpus()
			lastReload = time.Now()
		}
		var data []byte
		item := f.corpus.ChooseItem(rnd)
		if item == nil {
			data = f.md.Mutate(nil, f.maxMutationLen)
		} else if f.opts.DoCrossOver && rnd.Intn(4) == 0 {
			other := f.corpus.ChooseItem(rnd)
			data = f.md.CrossOver(item.Data, other.Data, f.maxMutationLen)
		} else {
			data = f.md.Mutate(item.Data, f.maxMutationLen)
		}
		if item != nil {
			f.corpus.NoteExecutedMutation(item)
		}
		f.runOneAndTriage(data)
	}
}

func (f *Fuzzer) runOneAndTriage(data []byte) {
	res, sign := f.ExecuteCallback(data)
	if res < 0 {
		return // input rejected by the target
	}
	if !f.corpus.HasNewSignal(sign) {
		return
	}
	if _, isNew := f.corpus.Add(data, sign); !isNew {
		return
	}
	f.statNewUnits.Add(1)
	log.Printf("#%v\tNEW    cov: %v corp: %v len: %v\n",
		f.runs, f.corpus.TotalFeatures(), f.corpus.Size(), len(data))
	if f.opts.PrintNewCovPcs {
		f.tpc.UpdateObservedPCs()
	}
	if err := f.corpus.WriteToOutputCorpus(data); err != nil {
		log.Printf("WARNING: %v\n", err)
	}
	f.writeFeaturesFile(data, sign)
}

func (f *Fuzzer) writeFeaturesFile(data []byte, sign signal.Signal) {
	if f.opts.FeaturesDir == "" {
		return
	}
	path := filepath.Join(f.opts.FeaturesDir, hash.String(data))
	buf := make([]byte, 0, sign.Len()*4)
	for _, ft := range sign.ToRaw() {
		buf = append(buf, byte(ft), byte(ft>>8), byte(ft>>16), byte(ft>>24))
	}
	if err := osutil.WriteFile(path, buf); err != nil {
		log.Logf(1, "failed to write features file: %v", err)
	}
}

func (f *Fuzzer) readAndExecuteSeedCorpora(corporaFiles []osutil.SizedFile) {
	if f.maxInputLen == 0 {
		f.guessMaxLen(corporaFiles)
	}
	if len(corporaFiles) == 0 {
		log.Printf("INFO: A corpus is not provided, starting from an empty corpus\n")
		f.runOneAndTriage([]byte{'\n'})
		return
	}
	if f.opts.ShuffleAtStartUp {
		rnd := f.md.Rand()
		rnd.Shuffle(len(corporaFiles), func(i, j int) {
			corporaFiles[i], corporaFiles[j] = corporaFiles[j], corporaFiles[i]
		})
		if f.opts.PreferSmall {
			osutil.SortSizedFiles(corporaFiles)
		}
	}
	for _, file := range corporaFiles {
		data, err := osutil.ReadFile(file.Path, f.maxInputLen)
		if err != nil {
			log.Logf(1, "skipping seed %v: %v", file.Path, err)
			continue
		}
		res, sign := f.ExecuteCallback(data)
		if res < 0 {
			continue
		}
		if f.opts.KeepSeed || f.corpus.HasNewSignal(sign) {
			f.corpus.Add(data, sign)
		}
	}
}

func (f *Fuzzer) guessMaxLen(corporaFiles []osutil.SizedFile) {
	maxLen := 0
	for _, file := range corporaFiles {
		if int(file.Size) > maxLen {
			maxLen = int(file.Size)
		}
	}
	if maxLen < kDefaultMaxLen {
		maxLen = kDefaultMaxLen
	}
	f.maxInputLen = maxLen
	f.maxMutationLen = maxLen
	log.Printf("INFO: -max_len is not provided; libFuzzer will not generate inputs larger than %v bytes\n", maxLen)
}

func (f *Fuzzer) budgetExhausted() bool {
	if f.opts.MaxNumberOfRuns >= 0 && f.runs >= f.opts.MaxNumberOfRuns {
		return true
	}
	if f.opts.MaxTotalTimeSec > 0 &&
		time.Since(f.startTime) > time.Duration(f.opts.MaxTotalTimeSec)*time.Second {
		return true
	}
	return false
}

func (f *Fuzzer) stopRequested() bool {
	return f.opts.StopFile != "" && osutil.IsExist(f.opts.StopFile)
}

func (f *Fuzzer) reloadOutputCorpus() {
	if f.opts.OutputCorpus == "" {
		return
	}
	units, err := osutil.ReadDirToUnits(f.opts.OutputCorpus, f.maxInputLen)
	if err != nil {
		return
	}
	for _, data := range units {
		res, sign := f.ExecuteCallback(data)
		if res < 0 {
			continue
		}
		if f.corpus.HasNewSignal(sign) {
			f.corpus.Add(data, sign)
		}
	}
}

// ExecuteUnitForMerge runs the unit and reports its feature and PC sets;
// used by the inner merge step.
func (f *Fuzzer) ExecuteUnitForMerge(data []byte) ([]uint32, []uint32) {
	_, sign := f.ExecuteCallback(data)
	return sign.ToRaw(), f.tpc.CurrentPCs()
}

// PrintFinalStats renders the metric registry. Always safe to call; it prints
// nothing unless the print_final_stats option is set.
func (f *Fuzzer) PrintFinalStats() {
	if !f.opts.PrintFinalStats {
		return
	}
	for _, ui := range stat.Collect() {
		log.Printf("stat::%-24v %v\n", ui.Name+":", ui.Value)
	}
	if f.opts.PrintFullCoverage {
		for _, pc := range f.tpc.ObservedPCs() {
			log.Printf("COVERED: 0x%x\n", pc)
		}
	}
	if f.opts.PrintCorpusStats {
		for _, item := range f.corpus.Items() {
			log.Printf("CORPUS: %v len: %v features: %v execs: %v\n",
				item.Sig, len(item.Data), item.NumFeatures, item.NumExecutedMutations)
		}
	}
}
