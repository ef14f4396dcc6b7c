// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package driver

import (
	"os"
	"strings"

	"github.com/google/fuzzdriver/pkg/fuzzer"
	"github.com/google/fuzzdriver/pkg/hash"
	"github.com/google/fuzzdriver/pkg/log"
	"github.com/google/fuzzdriver/pkg/osutil"
)

// getDedupTokenFromCmdOutput extracts the crash signature from the combined
// output of a crashed subprocess: the substring starting with DEDUP_TOKEN:
// and ending before the next newline. Empty if the marker is absent.
func getDedupTokenFromCmdOutput(s string) string {
	beg := strings.Index(s, "DEDUP_TOKEN:")
	if beg < 0 {
		return ""
	}
	end := strings.IndexByte(s[beg:], '\n')
	if end < 0 {
		return ""
	}
	return s[beg : beg+end]
}

// minimizeCrashInput is the outer minimization loop: it re-invokes this
// binary on the current input to confirm the crash, then re-invokes it with
// -minimize_crash_internal_step=1 to search for a smaller crashing input,
// repeating while the reduction reproduces the same bug (same dedup token).
func minimizeCrashInput(args, inputs []string, opts fuzzer.Options) int {
	if len(inputs) != 1 {
		log.Printf("ERROR: -minimize_crash should be given one input file\n")
		os.Exit(1)
	}
	inputFilePath := inputs[0]
	baseCmd := osutil.NewCommand(args)
	baseCmd.RemoveFlag("minimize_crash")
	baseCmd.RemoveFlag("exact_artifact_path")
	baseCmd.RemoveArgument(inputFilePath)
	if opts.MaxNumberOfRuns < 0 && opts.MaxTotalTimeSec == 0 {
		log.Printf("INFO: you need to specify -runs=N or -max_total_time=N with -minimize_crash=1\n" +
			"INFO: defaulting to -max_total_time=600\n")
		baseCmd.AddFlag("max_total_time", "600")
	}
	baseCmd.CombineOutAndErr()

	currentFilePath := inputFilePath
	for {
		data, err := osutil.ReadFile(currentFilePath, 0)
		if err != nil {
			log.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
		log.Printf("CRASH_MIN: minimizing crash input: '%v' (%v bytes)\n", currentFilePath, len(data))

		cmd := baseCmd.Clone()
		cmd.AddArgument(currentFilePath)
		log.Printf("CRASH_MIN: executing: %v\n", cmd.String())
		output, exitCode := cmd.ExecuteWithOutput()
		if exitCode == 0 {
			log.Printf("ERROR: the input %v did not crash\n", currentFilePath)
			os.Exit(1)
		}
		log.Printf("CRASH_MIN: '%v' (%v bytes) caused a crash. Will try to minimize it further\n",
			currentFilePath, len(data))
		dedupToken1 := getDedupTokenFromCmdOutput(output)
		if dedupToken1 != "" {
			log.Printf("CRASH_MIN: DedupToken1: %v\n", dedupToken1)
		}

		artifactPath := opts.ExactArtifactPath
		if artifactPath == "" {
			artifactPath = opts.ArtifactPrefix + "minimized-from-" + hash.String(data)
		}
		cmd.AddFlag("minimize_crash_internal_step", "1")
		cmd.AddFlag("exact_artifact_path", artifactPath)
		log.Printf("CRASH_MIN: executing: %v\n", cmd.String())
		output, exitCode = cmd.ExecuteWithOutput()
		log.Printf("%v", output)
		if exitCode == 0 {
			if opts.ExactArtifactPath != "" {
				currentFilePath = opts.ExactArtifactPath
				if err := osutil.WriteFile(currentFilePath, data); err != nil {
					log.Printf("ERROR: %v\n", err)
					os.Exit(1)
				}
			}
			log.Printf("CRASH_MIN: failed to minimize beyond %v (%v bytes), exiting\n",
				currentFilePath, len(data))
			break
		}
		dedupToken2 := getDedupTokenFromCmdOutput(output)
		if dedupToken2 != "" {
			log.Printf("CRASH_MIN: DedupToken2: %v\n", dedupToken2)
		}
		if dedupToken1 != dedupToken2 {
			if opts.ExactArtifactPath != "" {
				currentFilePath = opts.ExactArtifactPath
				if err := osutil.WriteFile(currentFilePath, data); err != nil {
					log.Printf("ERROR: %v\n", err)
					os.Exit(1)
				}
			}
			log.Printf("CRASH_MIN: mismatch in dedup tokens" +
				" (looks like a different bug). Won't minimize further\n")
			break
		}
		currentFilePath = artifactPath
		log.Printf("*********************************\n")
	}
	return 0
}

// minimizeCrashInputInternalStep runs the in-process minimization of the
// single input; the process exits from inside the crash handler if a smaller
// crashing input is found.
func minimizeCrashInputInternalStep(fz *fuzzer.Fuzzer, inputs []string) int {
	if len(inputs) != 1 {
		log.Printf("ERROR: -minimize_crash_internal_step should be given one input file\n")
		os.Exit(1)
	}
	data, err := osutil.ReadFile(inputs[0], 0)
	if err != nil {
		log.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	log.Printf("INFO: Starting MinimizeCrashInputInternalStep: %v\n", len(data))
	if len(data) < 2 {
		log.Printf("INFO: The input is small enough, exiting\n")
		os.Exit(0)
	}
	fz.SetMaxInputLen(len(data))
	fz.SetMaxMutationLen(len(data) - 1)
	fz.MinimizeCrashLoop(data)
	log.Printf("INFO: Done MinimizeCrashInputInternalStep, no crashes found\n")
	os.Exit(0)
	return 0
}
