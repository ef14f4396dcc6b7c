// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package driver is the orchestration core of the fuzzer: it parses flags,
// constructs the subsystems and dispatches to exactly one terminal mode per
// invocation (fuzz, run-individual, minimize, cleanse, merge, analyze-dict,
// fork, multi-process workers).
package driver

import (
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/google/fuzzdriver/pkg/corpus"
	"github.com/google/fuzzdriver/pkg/dict"
	"github.com/google/fuzzdriver/pkg/flags"
	"github.com/google/fuzzdriver/pkg/fuzzer"
	"github.com/google/fuzzdriver/pkg/fuzzer/mutate"
	"github.com/google/fuzzdriver/pkg/log"
	"github.com/google/fuzzdriver/pkg/merge"
	"github.com/google/fuzzdriver/pkg/osutil"
)

// Run is the stable entry point for fuzz targets: it never changes shape so
// that build integrations can link against it. The fuzzer, corpus and
// mutation dispatcher it creates are deliberately never destroyed; terminal
// modes exit the process to avoid racing the signal handlers.
func Run(args []string, cb fuzzer.Callback) int {
	return FuzzerDriver(args, cb, nil)
}

func FuzzerDriver(args []string, cb fuzzer.Callback, ef *fuzzer.ExternalFunctions) int {
	if len(args) == 0 || cb == nil {
		log.Fatalf("argument vector and callback cannot be empty")
	}
	if ef == nil {
		ef = new(fuzzer.ExternalFunctions)
	}
	argv0 := args[0]
	if ef.Initialize != nil {
		ef.Initialize(&args)
	}
	if len(args) == 0 || args[0] != argv0 {
		log.Printf("ERROR: argv[0] has been modified in Initialize\n")
		os.Exit(1)
	}
	progName := args[0]

	f, inputs := flags.ParseFlags(args, ef.CustomMutator != nil)
	log.SetVerbosity(f.Verbosity)
	if f.Help != 0 {
		log.Locked(func(w io.Writer) {
			flags.PrintHelp(progName, w)
		})
		return 0
	}

	if f.CloseFdMask&2 != 0 {
		if oldStderr := osutil.DupAndCloseStderr(); oldStderr != nil {
			log.SetOutput(oldStderr)
		}
	}
	if f.CloseFdMask&1 != 0 {
		osutil.CloseStdout()
	}

	if f.Jobs > 0 && f.Workers == 0 {
		f.Workers = min(osutil.NumberOfCPUCores()/2, f.Jobs)
		if f.Workers > 1 {
			log.Printf("Running %v workers\n", f.Workers)
		}
	}
	if f.Workers > 0 && f.Jobs > 0 {
		return runInMultipleProcesses(args, f.Workers, f.Jobs, f.Verbosity)
	}

	opts := buildOptions(f)

	if len(inputs) > 0 && f.MinimizeCrashInternalStep == 0 {
		// The first arbitrary positional is the output corpus directory,
		// unless it is a path to an existing file.
		if !osutil.IsFile(inputs[0]) {
			opts.OutputCorpus = inputs[0]
			validateDirectoryExists(opts.OutputCorpus, f.CreateMissingDirs != 0)
		}
	}
	if opts.ArtifactPrefix != "" {
		// The prefix may be a file-name prefix; if it does not end with the
		// platform separator, its parent is the directory to validate.
		dir := opts.ArtifactPrefix
		if !osutil.IsSeparator(dir[len(dir)-1]) {
			dir = osutil.DirName(dir)
		}
		validateDirectoryExists(dir, f.CreateMissingDirs != 0)
	}
	if opts.ExactArtifactPath != "" {
		validateDirectoryExists(osutil.DirName(opts.ExactArtifactPath), f.CreateMissingDirs != 0)
	}
	if opts.FeaturesDir != "" {
		validateDirectoryExists(opts.FeaturesDir, f.CreateMissingDirs != 0)
	}

	var dictionary [][]byte
	if f.Dict != "" {
		text, err := osutil.ReadFile(f.Dict, 0)
		if err != nil {
			log.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
		dictionary, err = dict.ParseFile(string(text))
		if err != nil {
			log.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	}
	if f.Verbosity > 0 && len(dictionary) > 0 {
		log.Printf("Dictionary: %v entries\n", len(dictionary))
	}

	runIndividualFiles := allInputsAreFiles(inputs)
	opts.SaveArtifacts = !runIndividualFiles || f.MinimizeCrashInternalStep != 0

	seed := f.Seed
	if seed == 0 {
		seed = uint(time.Now().UnixNano()) + uint(osutil.GetPid())
	}
	if f.Verbosity > 0 {
		log.Printf("INFO: Seed: %v\n", seed)
	}
	if opts.FocusFunction != "" {
		// Focus function overrides entropic scheduling.
		opts.Entropic = false
	}
	if opts.Entropic {
		log.Printf("INFO: Running with entropic power schedule (0x%X, %v).\n",
			opts.EntropicFeatureFrequencyThreshold, opts.EntropicNumberOfRarestFeatures)
	}

	rnd := rand.New(rand.NewSource(int64(seed)))
	md := mutate.NewDispatcher(rnd, mutate.Options{
		MaxLen:               opts.MaxLen,
		MutateDepth:          opts.MutateDepth,
		DoCrossOver:          opts.DoCrossOver,
		CrossOverUniformDist: opts.CrossOverUniformDist,
		OnlyASCII:            opts.OnlyASCII,
	}, ef.CustomMutator)
	ic := corpus.NewInputCorpus(opts.OutputCorpus, corpus.EntropicOptions{
		Enabled:                   opts.Entropic,
		FeatureFrequencyThreshold: opts.EntropicFeatureFrequencyThreshold,
		NumberOfRarestFeatures:    opts.EntropicNumberOfRarestFeatures,
		ScalePerExecTime:          opts.EntropicScalePerExecTime,
	})
	fz := fuzzer.New(cb, ic, md, opts, ef.Tracer)

	for _, w := range dictionary {
		// Oversize tokens are silently dropped by the dispatcher.
		md.AddWordToManualDictionary(mutate.Word(w))
	}

	startRssMonitor(fz, f.RssLimitMb)
	fz.SetSignalHandler()

	if f.MinimizeCrash != 0 {
		os.Exit(minimizeCrashInput(args, inputs, opts))
	}
	if f.MinimizeCrashInternalStep != 0 {
		return minimizeCrashInputInternalStep(fz, inputs)
	}
	if f.CleanseCrash != 0 {
		os.Exit(cleanseCrashInput(args, inputs, opts))
	}

	if runIndividualFiles {
		opts.SaveArtifacts = false
		runs := max(1, f.Runs)
		log.Printf("%v: Running %v inputs %v time(s) each.\n", progName, len(inputs), runs)
		for _, path := range inputs {
			start := time.Now()
			log.Printf("Running: %v\n", path)
			for iter := 0; iter < runs; iter++ {
				runOneTest(fz, path, opts)
			}
			log.Printf("Executed %v in %v ms\n", path, time.Since(start).Milliseconds())
		}
		log.Printf("***\n*** NOTE: fuzzing was not performed, you have only\n" +
			"***       executed the target code on a fixed set of inputs.\n***\n")
		fz.PrintFinalStats()
		os.Exit(0)
	}

	if f.Fork > 0 {
		fuzzWithFork(args, f.Fork, f.Verbosity)
	}

	if f.Merge != 0 || f.SetCoverMerge != 0 {
		runMerge(fz, opts, args, inputs, f.MergeControlFile, f.SetCoverMerge != 0)
	}

	if f.MergeInner != "" {
		const kDefaultMaxMergeLen = 1 << 20
		if opts.MaxLen == 0 {
			fz.SetMaxInputLen(kDefaultMaxMergeLen)
		}
		if f.MergeControlFile == "" {
			log.Fatalf("-merge_inner requires -merge_control_file")
		}
		maxLen := opts.MaxLen
		if maxLen == 0 {
			maxLen = kDefaultMaxMergeLen
		}
		if err := merge.InternalStep(fz, f.MergeControlFile, maxLen); err != nil {
			log.Printf("ERROR: merge inner step failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if f.AnalyzeDict != 0 {
		units := readCorporaUnits(inputs)
		if len(dictionary) == 0 || len(inputs) == 0 {
			log.Printf("ERROR: can't analyze dict without dict and corpus provided\n")
			os.Exit(1)
		}
		analyzeDictionary(fz, dictionary, units)
		log.Printf("Dictionary analysis succeeded\n")
		os.Exit(0)
	}

	corporaFiles := readCorpora(inputs, parseSeedInputs(f.SeedInputs))
	fz.Loop(corporaFiles)

	if f.Verbosity > 0 {
		log.Printf("Done %v runs in %v second(s)\n",
			fz.TotalNumberOfRuns(), fz.SecondsSinceProcessStartUp())
	}
	fz.PrintFinalStats()
	os.Exit(0)
	return 0
}

func buildOptions(f *flags.Flags) fuzzer.Options {
	opts := fuzzer.Options{
		Verbosity:            f.Verbosity,
		MaxLen:               f.MaxLen,
		LenControl:           f.LenControl,
		KeepSeed:             f.KeepSeed != 0,
		UnitTimeoutSec:       f.Timeout,
		ErrorExitCode:        f.ErrorExitcode,
		TimeoutExitCode:      f.TimeoutExitcode,
		OOMExitCode:          71,
		InterruptExitCode:    72,
		IgnoreTimeouts:       f.IgnoreTimeouts != 0,
		IgnoreOOMs:           f.IgnoreOOMs != 0,
		IgnoreCrashes:        f.IgnoreCrashes != 0,
		MaxTotalTimeSec:      f.MaxTotalTime,
		MaxNumberOfRuns:      -1,
		DoCrossOver:          f.CrossOver != 0,
		CrossOverUniformDist: f.CrossOverUniformDist != 0,
		MutateDepth:          f.MutateDepth,
		ReduceDepth:          f.ReduceDepth != 0,
		UseCounters:          f.UseCounters != 0,
		UseMemmem:            f.UseMemmem != 0,
		UseCmp:               f.UseCmp != 0,
		UseValueProfile:      f.UseValueProfile != 0,
		Shrink:               f.Shrink != 0,
		ReduceInputs:         f.ReduceInputs != 0,
		ShuffleAtStartUp:     f.Shuffle != 0,
		PreferSmall:          f.PreferSmall != 0,
		ReloadIntervalSec:    f.Reload,
		OnlyASCII:            f.OnlyASCII != 0,
		DetectLeaks:          f.DetectLeaks != 0,
		PurgeAllocatorIntervalSec: f.PurgeAllocatorInterval,
		TraceMalloc:          f.TraceMalloc,
		RssLimitMb:           f.RssLimitMb,
		MallocLimitMb:        f.MallocLimitMb,
		ReportSlowUnits:      f.ReportSlowUnits,
		ArtifactPrefix:       f.ArtifactPrefix,
		ExactArtifactPath:    f.ExactArtifactPath,
		PrintNewCovPcs:       f.PrintPcs != 0,
		PrintNewCovFuncs:     f.PrintFuncs,
		PrintFinalStats:      f.PrintFinalStats != 0,
		PrintCorpusStats:     f.PrintCorpusStats != 0,
		PrintCoverage:        f.PrintCoverage != 0,
		PrintFullCoverage:    f.PrintFullCoverage != 0,
		ExitOnSrcPos:         f.ExitOnSrcPos,
		ExitOnItem:           f.ExitOnItem,
		FocusFunction:        f.FocusFunction,
		FeaturesDir:          f.FeaturesDir,
		MutationGraphFile:    f.MutationGraphFile,
		StopFile:             f.StopFile,
		Entropic:             f.Entropic != 0,
		EntropicFeatureFrequencyThreshold: f.EntropicFeatureFrequencyThreshold,
		EntropicNumberOfRarestFeatures:    f.EntropicNumberOfRarestFeatures,
		EntropicScalePerExecTime:          f.EntropicScalePerExecTime != 0,
		ForkCorpusGroups:     f.ForkCorpusGroups != 0,
		HandleAbrt:           f.HandleAbrt != 0,
		HandleAlrm:           f.MinimizeCrash == 0,
		HandleBus:            f.HandleBus != 0,
		HandleFpe:            f.HandleFpe != 0,
		HandleIll:            f.HandleIll != 0,
		HandleInt:            f.HandleInt != 0,
		HandleSegv:           f.HandleSegv != 0,
		HandleTerm:           f.HandleTerm != 0,
		HandleXfsz:           f.HandleXfsz != 0,
		HandleUsr1:           f.HandleUsr1 != 0,
		HandleUsr2:           f.HandleUsr2 != 0,
	}
	if opts.MallocLimitMb == 0 {
		opts.MallocLimitMb = opts.RssLimitMb
	}
	if f.Runs >= 0 {
		opts.MaxNumberOfRuns = f.Runs
	}
	return opts
}

func validateDirectoryExists(path string, create bool) {
	if path == "" {
		log.Printf("ERROR: Provided directory path is an empty string\n")
		os.Exit(1)
	}
	if osutil.IsDir(path) {
		return
	}
	if create {
		if err := osutil.MkdirAll(path); err != nil {
			log.Printf("ERROR: Failed to create directory %q\n", path)
			os.Exit(1)
		}
		return
	}
	log.Printf("ERROR: The required directory %q does not exist\n", path)
	os.Exit(1)
}

func allInputsAreFiles(inputs []string) bool {
	if len(inputs) == 0 {
		return false
	}
	for _, path := range inputs {
		if !osutil.IsFile(path) {
			return false
		}
	}
	return true
}

// runOneTest executes a single input file through the target.
// Leak detection is not needed when collecting full coverage data.
func runOneTest(fz *fuzzer.Fuzzer, path string, opts fuzzer.Options) {
	data, err := osutil.ReadFile(path, opts.MaxLen)
	if err != nil {
		log.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	fz.ExecuteCallback(data)
	if opts.PrintFullCoverage {
		fz.TPCUpdateObservedPCs()
	} else {
		fz.TryDetectingAMemoryLeak(data)
	}
}
