// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

// Options is the semantic configuration snapshot derived from the parsed
// flags. It is constructed once by the driver and thereafter read-only.
type Options struct {
	Verbosity            int
	MaxLen               int
	LenControl           int
	KeepSeed             bool
	UnitTimeoutSec       int
	ErrorExitCode        int
	TimeoutExitCode      int
	OOMExitCode          int
	InterruptExitCode    int
	IgnoreTimeouts       bool
	IgnoreOOMs           bool
	IgnoreCrashes        bool
	MaxTotalTimeSec      int
	MaxNumberOfRuns      int
	DoCrossOver          bool
	CrossOverUniformDist bool
	MutateDepth          int
	ReduceDepth          bool
	UseCounters          bool
	UseMemmem            bool
	UseCmp               bool
	UseValueProfile      bool
	Shrink               bool
	ReduceInputs         bool
	ShuffleAtStartUp     bool
	PreferSmall          bool
	ReloadIntervalSec    int
	OnlyASCII            bool
	DetectLeaks          bool
	PurgeAllocatorIntervalSec int
	TraceMalloc          int
	RssLimitMb           int
	MallocLimitMb        int
	ReportSlowUnits      int

	OutputCorpus      string
	ArtifactPrefix    string
	ExactArtifactPath string
	SaveArtifacts     bool

	PrintNewCovPcs    bool
	PrintNewCovFuncs  int
	PrintFinalStats   bool
	PrintCorpusStats  bool
	PrintCoverage     bool
	PrintFullCoverage bool

	ExitOnSrcPos      string
	ExitOnItem        string
	FocusFunction     string
	FeaturesDir       string
	MutationGraphFile string
	StopFile          string

	Entropic                          bool
	EntropicFeatureFrequencyThreshold uint
	EntropicNumberOfRarestFeatures    uint
	EntropicScalePerExecTime          bool

	ForkCorpusGroups bool

	HandleAbrt      bool
	HandleAlrm      bool
	HandleBus       bool
	HandleFpe       bool
	HandleIll       bool
	HandleInt       bool
	HandleSegv      bool
	HandleTerm      bool
	HandleXfsz      bool
	HandleUsr1      bool
	HandleUsr2      bool
}
