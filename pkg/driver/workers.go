// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package driver

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/google/fuzzdriver/pkg/fuzzer"
	"github.com/google/fuzzdriver/pkg/log"
	"github.com/google/fuzzdriver/pkg/osutil"
)

// runInMultipleProcesses spawns numWorkers goroutines that claim job IDs
// from a shared counter and run one subprocess per job, with the job's
// output captured in fuzz-<ID>.log. Returns 1 if any job failed.
func runInMultipleProcesses(args []string, numWorkers, numJobs, verbosity int) int {
	var counter atomic.Uint32
	var hasErrors atomic.Bool
	base := osutil.NewCommand(args)
	base.RemoveFlag("jobs")
	base.RemoveFlag("workers")
	go pulseThread()
	var g errgroup.Group
	for i := 0; i < numWorkers; i++ {
		g.Go(func() error {
			workerThread(base, &counter, uint32(numJobs), &hasErrors, verbosity)
			return nil
		})
	}
	g.Wait()
	if hasErrors.Load() {
		return 1
	}
	return 0
}

func workerThread(base *osutil.Command, counter *atomic.Uint32, numJobs uint32,
	hasErrors *atomic.Bool, verbosity int) {
	for {
		c := counter.Add(1) - 1
		if c >= numJobs {
			return
		}
		logPath := fmt.Sprintf("fuzz-%v.log", c)
		cmd := base.Clone()
		cmd.SetOutputFile(logPath)
		cmd.CombineOutAndErr()
		if verbosity > 0 {
			log.Printf("%v\n", cmd.String())
		}
		exitCode := cmd.Execute()
		if exitCode != 0 {
			hasErrors.Store(true)
		}
		log.Locked(func(w io.Writer) {
			fmt.Fprintf(w, "================== Job %v exited with exit code %v ============\n", c, exitCode)
			copyFileTo(logPath, w)
		})
	}
}

func copyFileTo(path string, w io.Writer) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(w, "failed to open %v: %v\n", path, err)
		return
	}
	defer f.Close()
	io.Copy(w, f)
}

// pulseThread prints a liveness line every 10 minutes; it is never joined
// and dies with the process.
func pulseThread() {
	for {
		osutil.SleepSeconds(600)
		log.Printf("pulse...\n")
	}
}

// startRssMonitor samples peak RSS once a second and invokes the fuzzer's
// limit callback on exceedance. Disabled when the limit is zero.
func startRssMonitor(fz *fuzzer.Fuzzer, rssLimitMb int) {
	if rssLimitMb == 0 {
		return
	}
	go func() {
		for {
			osutil.SleepSeconds(1)
			if osutil.GetPeakRSSMb() > rssLimitMb {
				fz.RssLimitCallback()
			}
		}
	}()
}

// fuzzWithFork runs parallel short-lived child fuzzing processes over the
// same corpora. Children get the fork flag stripped so they run the plain
// fuzzing loop. Each child runs once; a child that dies is not restarted,
// and the process exits with 1 if any child exited non-zero.
func fuzzWithFork(args []string, numProcs, verbosity int) {
	base := osutil.NewCommand(args)
	base.RemoveFlag("fork")
	log.Printf("INFO: -fork=%v: fuzzing in separate process(es)\n", numProcs)
	exitCode := runInMultipleProcesses(base.Args(), numProcs, numProcs, verbosity)
	os.Exit(exitCode)
}
