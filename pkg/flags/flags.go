// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package flags holds the driver flag registry and the -name=value parser.
// The registry is a single ordered table; order drives help output.
package flags

// Flags is the backing storage for all registered flags. Every field is
// populated with its declared default before parsing, so after ParseFlags
// returns no field is ever uninitialized.
type Flags struct {
	Verbosity                 int
	MaxLen                    int
	LenControl                int
	KeepSeed                  int
	Timeout                   int
	ErrorExitcode             int
	TimeoutExitcode           int
	MaxTotalTime              int
	Help                      int
	Fork                      int
	ForkCorpusGroups          int
	IgnoreTimeouts            int
	IgnoreOOMs                int
	IgnoreCrashes             int
	Merge                     int
	SetCoverMerge             int
	MergeControlFile          string
	MergeInner                string
	MinimizeCrash             int
	CleanseCrash              int
	MinimizeCrashInternalStep int
	Jobs                      int
	Workers                   int
	Reload                    int
	Runs                      int
	Seed                      uint
	SeedInputs                string
	CrossOver                 int
	CrossOverUniformDist      int
	MutateDepth               int
	ReduceDepth               int
	Shuffle                   int
	PreferSmall               int
	UseCounters               int
	UseMemmem                 int
	UseValueProfile           int
	UseCmp                    int
	Shrink                    int
	ReduceInputs              int
	OnlyASCII                 int
	Dict                      string
	AnalyzeDict               int
	ArtifactPrefix            string
	ExactArtifactPath         string
	PrintPcs                  int
	PrintFuncs                int
	PrintFinalStats           int
	PrintCorpusStats          int
	PrintCoverage             int
	PrintFullCoverage         int
	DetectLeaks               int
	PurgeAllocatorInterval    int
	TraceMalloc               int
	RssLimitMb                int
	MallocLimitMb             int
	ReportSlowUnits           int
	CloseFdMask               int
	HandleSegv                int
	HandleBus                 int
	HandleAbrt                int
	HandleIll                 int
	HandleFpe                 int
	HandleInt                 int
	HandleTerm                int
	HandleXfsz                int
	HandleUsr1                int
	HandleUsr2                int
	Entropic                  int
	EntropicFeatureFrequencyThreshold uint
	EntropicNumberOfRarestFeatures    uint
	EntropicScalePerExecTime          int
	FocusFunction             string
	StopFile                  string
	FeaturesDir               string
	ExitOnSrcPos              string
	ExitOnItem                string
	MutationGraphFile         string
	CreateMissingDirs         int
	IgnoreRemainingArgs       int
}

// Desc is one row of the flag registry. Exactly one of the pointer fields is
// non-nil for a live flag; a row with all pointers nil is a deprecated flag
// that is recognized but ignored.
type Desc struct {
	Name        string
	Description string
	Default     int
	IntFlag     *int
	UintFlag    *uint
	StrFlag     *string
}

// Registry returns the ordered flag table bound to f. Descriptions beginning
// with "internal flag" are hidden from help output.
func Registry(f *Flags) []Desc {
	return []Desc{
		{Name: "verbosity", Description: "Verbosity level.", Default: 1, IntFlag: &f.Verbosity},
		{Name: "seed", Description: "Random seed. If 0, seed is generated.", Default: 0, UintFlag: &f.Seed},
		{Name: "runs", Description: "Number of individual test runs (-1 for infinite runs).", Default: -1, IntFlag: &f.Runs},
		{Name: "max_len", Description: "Maximum length of the test input. " +
			"If 0, libFuzzer tries to guess a good value based on the corpus and reports it.", Default: 0, IntFlag: &f.MaxLen},
		{Name: "len_control", Description: "Try generating small inputs first, then try larger inputs over time. " +
			"Specifies the rate at which the length limit is increased (smaller == faster). " +
			"If 0, immediately try inputs with size up to max_len.", Default: 100, IntFlag: &f.LenControl},
		{Name: "seed_inputs", Description: "A comma-separated list of input files to use as an additional seed corpus. " +
			"Alternatively, an \"@\" followed by the name of a file containing the comma-separated list.", StrFlag: &f.SeedInputs},
		{Name: "keep_seed", Description: "If 1, keep seed inputs in the corpus even if they do not produce new coverage.", Default: 0, IntFlag: &f.KeepSeed},
		{Name: "cross_over", Description: "If 1, cross over inputs.", Default: 1, IntFlag: &f.CrossOver},
		{Name: "cross_over_uniform_dist", Description: "Experimental. If 1, use a uniform probability distribution when choosing inputs to cross over with.", Default: 0, IntFlag: &f.CrossOverUniformDist},
		{Name: "mutate_depth", Description: "Apply this number of consecutive mutations to each input.", Default: 5, IntFlag: &f.MutateDepth},
		{Name: "reduce_depth", Description: "Experimental. Reduce depth if mutations lose unique features.", Default: 0, IntFlag: &f.ReduceDepth},
		{Name: "shuffle", Description: "Shuffle inputs at startup.", Default: 1, IntFlag: &f.Shuffle},
		{Name: "prefer_small", Description: "If 1, always prefer smaller inputs during the corpus shuffle.", Default: 1, IntFlag: &f.PreferSmall},
		{Name: "timeout", Description: "Timeout in seconds (if positive). " +
			"If one unit runs more than this number of seconds the process will abort.", Default: 1200, IntFlag: &f.Timeout},
		{Name: "error_exitcode", Description: "When libFuzzer itself reports a bug this exit code will be used.", Default: 77, IntFlag: &f.ErrorExitcode},
		{Name: "timeout_exitcode", Description: "When libFuzzer reports a timeout this exit code will be used.", Default: 70, IntFlag: &f.TimeoutExitcode},
		{Name: "max_total_time", Description: "If positive, indicates the maximal total time in seconds to run the fuzzer.", Default: 0, IntFlag: &f.MaxTotalTime},
		{Name: "help", Description: "Print help.", Default: 0, IntFlag: &f.Help},
		{Name: "fork", Description: "Experimental mode where fuzzing happens in a subprocess.", Default: 0, IntFlag: &f.Fork},
		{Name: "fork_corpus_groups", Description: "For fork mode, enable the corpus-group strategy, The main corpus will be grouped according to size, " +
			"and each sub-process will randomly select seeds from different groups as the sub-corpus.", Default: 0, IntFlag: &f.ForkCorpusGroups},
		{Name: "ignore_timeouts", Description: "Ignore timeouts in fork mode.", Default: 1, IntFlag: &f.IgnoreTimeouts},
		{Name: "ignore_ooms", Description: "Ignore OOMs in fork mode.", Default: 1, IntFlag: &f.IgnoreOOMs},
		{Name: "ignore_crashes", Description: "Ignore crashes in fork mode.", Default: 0, IntFlag: &f.IgnoreCrashes},
		{Name: "merge", Description: "If 1, the 2-nd, 3-rd, etc corpora will be merged into the 1-st corpus. Only interesting units will be taken. " +
			"This flag can be used to minimize a corpus.", Default: 0, IntFlag: &f.Merge},
		{Name: "set_cover_merge", Description: "If 1, the same as merge but uses the greedy set cover algorithm.", Default: 0, IntFlag: &f.SetCoverMerge},
		{Name: "merge_control_file", Description: "Specify a control file used for the merge process. " +
			"If a merge process gets killed it tries to leave this file in a state suitable for resuming the merge. " +
			"By default a temporary file will be used.", StrFlag: &f.MergeControlFile},
		{Name: "merge_inner", Description: "internal flag", StrFlag: &f.MergeInner},
		{Name: "minimize_crash", Description: "If 1, minimizes the provided crash input. " +
			"Use with -runs=N or -max_total_time=N to limit the number attempts.", Default: 0, IntFlag: &f.MinimizeCrash},
		{Name: "cleanse_crash", Description: "If 1, tries to cleanse the provided crash input to make it contain fewer original bytes.", Default: 0, IntFlag: &f.CleanseCrash},
		{Name: "minimize_crash_internal_step", Description: "internal flag", Default: 0, IntFlag: &f.MinimizeCrashInternalStep},
		{Name: "jobs", Description: "Number of jobs to run. If jobs >= 1 we spawn this number of jobs in separate worker processes " +
			"with stdout/stderr redirected to fuzz-JOB.log.", Default: 0, IntFlag: &f.Jobs},
		{Name: "workers", Description: "Number of simultaneous worker processes to run the jobs. If zero, \"min(jobs,NumberOfCpuCores()/2)\" is used.", Default: 0, IntFlag: &f.Workers},
		{Name: "reload", Description: "Reload the main corpus every <N> seconds to get new units discovered by other processes. If 0, disabled.", Default: 1, IntFlag: &f.Reload},
		{Name: "report_slow_units", Description: "Report slowest units if they run for more than this number of seconds.", Default: 10, IntFlag: &f.ReportSlowUnits},
		{Name: "only_ascii", Description: "If 1, generate only ASCII (isprint+isspace) inputs.", Default: 0, IntFlag: &f.OnlyASCII},
		{Name: "dict", Description: "Experimental. Use the dictionary file.", StrFlag: &f.Dict},
		{Name: "analyze_dict", Description: "Experimental. If 1, analyze the dictionary and its usage.", Default: 0, IntFlag: &f.AnalyzeDict},
		{Name: "artifact_prefix", Description: "Write fuzzing artifacts (crash, timeout, or slow inputs) as $(artifact_prefix)file.", StrFlag: &f.ArtifactPrefix},
		{Name: "exact_artifact_path", Description: "Write the single artifact on failure (crash, timeout) as $(exact_artifact_path). " +
			"This overrides -artifact_prefix and will not use checksum in the file name. " +
			"Do not use the same path for several parallel processes.", StrFlag: &f.ExactArtifactPath},
		{Name: "print_pcs", Description: "If 1, print out newly covered PCs.", Default: 0, IntFlag: &f.PrintPcs},
		{Name: "print_funcs", Description: "If >=1, print out at most this number of newly covered functions.", Default: 2, IntFlag: &f.PrintFuncs},
		{Name: "print_final_stats", Description: "If 1, print statistics at exit.", Default: 0, IntFlag: &f.PrintFinalStats},
		{Name: "print_corpus_stats", Description: "If 1, print statistics on corpus elements at exit.", Default: 0, IntFlag: &f.PrintCorpusStats},
		{Name: "print_coverage", Description: "If 1, print coverage information as text at exit.", Default: 0, IntFlag: &f.PrintCoverage},
		{Name: "print_full_coverage", Description: "If 1, print full coverage information (all branches) as text at exit.", Default: 0, IntFlag: &f.PrintFullCoverage},
		{Name: "use_counters", Description: "Use coverage counters.", Default: 1, IntFlag: &f.UseCounters},
		{Name: "use_memmem", Description: "Use hints from intercepting memmem, strstr, etc.", Default: 1, IntFlag: &f.UseMemmem},
		{Name: "use_value_profile", Description: "Experimental. Use value profile to guide fuzzing.", Default: 0, IntFlag: &f.UseValueProfile},
		{Name: "use_cmp", Description: "Use CMP traces to guide mutations.", Default: 1, IntFlag: &f.UseCmp},
		{Name: "shrink", Description: "Experimental. Try to shrink corpus inputs.", Default: 0, IntFlag: &f.Shrink},
		{Name: "reduce_inputs", Description: "Try to reduce the size of inputs while preserving their full feature sets.", Default: 1, IntFlag: &f.ReduceInputs},
		{Name: "detect_leaks", Description: "If 1, and if LeakSanitizer is enabled try to detect memory leaks during fuzzing (i.e. not only at shut down).", Default: 1, IntFlag: &f.DetectLeaks},
		{Name: "purge_allocator_interval", Description: "Purge allocator caches and quarantines every <N> seconds. " +
			"When rss_limit_mb is specified (>0), purging starts when RSS exceeds 50% of rss_limit_mb. Pass purge_allocator_interval=-1 to disable this functionality.", Default: 1, IntFlag: &f.PurgeAllocatorInterval},
		{Name: "trace_malloc", Description: "If >= 1 will print all mallocs/frees. If >= 2 will also print stack traces.", Default: 0, IntFlag: &f.TraceMalloc},
		{Name: "rss_limit_mb", Description: "If non-zero, the fuzzer will exit upon reaching this limit of RSS memory usage.", Default: 2048, IntFlag: &f.RssLimitMb},
		{Name: "malloc_limit_mb", Description: "If non-zero, the fuzzer will exit if the target tries to allocate this number of Mb with one malloc call. " +
			"If zero (default) same limit as rss_limit_mb is applied.", Default: 0, IntFlag: &f.MallocLimitMb},
		{Name: "exit_on_src_pos", Description: "Exit if a newly found PC originates from the given source location. " +
			"Example: -exit_on_src_pos=foo.cc:123. Used primarily for testing libFuzzer itself.", StrFlag: &f.ExitOnSrcPos},
		{Name: "exit_on_item", Description: "Exit if an item with a given sha1 sum was added to the corpus. Used primarily for testing libFuzzer itself.", StrFlag: &f.ExitOnItem},
		{Name: "ignore_remaining_args", Description: "If 1, ignore all arguments passed after this one. Useful for fuzzers that need to do their own argument parsing.", Default: 0, IntFlag: &f.IgnoreRemainingArgs},
		{Name: "focus_function", Description: "Experimental. Fuzzing will focus on inputs that trigger calls to this function. " +
			"If -focus_function=auto and -data_flow_trace is used, libFuzzer will choose the focus functions automatically.", StrFlag: &f.FocusFunction},
		{Name: "entropic", Description: "Enables entropic power schedule.", Default: 1, IntFlag: &f.Entropic},
		{Name: "entropic_feature_frequency_threshold", Description: "Experimental. If entropic is enabled, all features which are observed less often than " +
			"the specified value are considered as rare.", Default: 0xFF, UintFlag: &f.EntropicFeatureFrequencyThreshold},
		{Name: "entropic_number_of_rarest_features", Description: "Experimental. If entropic is enabled, we keep track of the frequencies only for the " +
			"Top-X least abundant features (union features that are considered as rare).", Default: 100, UintFlag: &f.EntropicNumberOfRarestFeatures},
		{Name: "entropic_scale_per_exec_time", Description: "Experimental. If 1, the Entropic power schedule gets scaled based on the input execution " +
			"time. Inputs with lower execution time get scheduled more (up to 30x). Note that, if 1, fuzzer stops from being deterministic even if a " +
			"non-zero random seed is given.", Default: 0, IntFlag: &f.EntropicScalePerExecTime},
		{Name: "analyze", Description: "Deprecated; don't use"},
		{Name: "use_clang_coverage", Description: "Deprecated; don't use"},
		{Name: "run_equivalence_server", Description: "Deprecated; don't use"},
		{Name: "use_equivalence_server", Description: "Deprecated; don't use"},
		{Name: "stop_file", Description: "Stop fuzzing ASAP if this file exists.", StrFlag: &f.StopFile},
		{Name: "features_dir", Description: "internal flag. Used to dump feature sets on disk. " +
			"Every time a new input is added to the corpus, a corresponding file in the features_dir is created containing the unique features of that input. " +
			"Features are stored in binary format.", StrFlag: &f.FeaturesDir},
		{Name: "mutation_graph_file", Description: "Saves a graph (in DOT format) to mutation_graph_file. " +
			"The graph contains a vertex for each input that has unique coverage; directed edges are provided between parents and children where the " +
			"child has unique coverage, and are recorded with the type of mutation that caused the child.", StrFlag: &f.MutationGraphFile},
		{Name: "close_fd_mask", Description: "If 1, close stdout at startup; if 2, close stderr; if 3, close both. " +
			"Be careful, this will also close e.g. stderr of asan.", Default: 0, IntFlag: &f.CloseFdMask},
		{Name: "create_missing_dirs", Description: "Automatically attempt to create directories for arguments that would normally expect them to already exist " +
			"(i.e. artifact_prefix, exact_artifact_path, features_dir, corpus)", Default: 0, IntFlag: &f.CreateMissingDirs},
		{Name: "handle_segv", Description: "If 1, try to intercept SIGSEGV.", Default: 1, IntFlag: &f.HandleSegv},
		{Name: "handle_bus", Description: "If 1, try to intercept SIGBUS.", Default: 1, IntFlag: &f.HandleBus},
		{Name: "handle_abrt", Description: "If 1, try to intercept SIGABRT.", Default: 1, IntFlag: &f.HandleAbrt},
		{Name: "handle_ill", Description: "If 1, try to intercept SIGILL.", Default: 1, IntFlag: &f.HandleIll},
		{Name: "handle_fpe", Description: "If 1, try to intercept SIGFPE.", Default: 1, IntFlag: &f.HandleFpe},
		{Name: "handle_int", Description: "If 1, try to intercept SIGINT.", Default: 1, IntFlag: &f.HandleInt},
		{Name: "handle_term", Description: "If 1, try to intercept SIGTERM.", Default: 1, IntFlag: &f.HandleTerm},
		{Name: "handle_xfsz", Description: "If 1, try to intercept SIGXFSZ.", Default: 1, IntFlag: &f.HandleXfsz},
		{Name: "handle_usr1", Description: "If 1, try to intercept SIGUSR1.", Default: 1, IntFlag: &f.HandleUsr1},
		{Name: "handle_usr2", Description: "If 1, try to intercept SIGUSR2.", Default: 1, IntFlag: &f.HandleUsr2},
	}
}
