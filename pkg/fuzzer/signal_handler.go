// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/fuzzdriver/pkg/log"
)

// SetSignalHandler installs the process signal handlers selected by the
// options. Deadly-signal, alarm and interrupt handlers flush artifacts and
// exit; SIGUSR1/SIGUSR2 only print the final stats. Handlers run on a
// dedicated goroutine, so terminal driver modes must exit the process
// themselves rather than unwind.
func (f *Fuzzer) SetSignalHandler() {
	var sigs []os.Signal
	add := func(enabled bool, sig os.Signal) {
		if enabled {
			sigs = append(sigs, sig)
		}
	}
	add(f.opts.HandleInt, syscall.SIGINT)
	add(f.opts.HandleTerm, syscall.SIGTERM)
	add(f.opts.HandleAlrm, syscall.SIGALRM)
	add(f.opts.HandleXfsz, syscall.SIGXFSZ)
	add(f.opts.HandleUsr1, syscall.SIGUSR1)
	add(f.opts.HandleUsr2, syscall.SIGUSR2)
	add(f.opts.HandleAbrt, syscall.SIGABRT)
	add(f.opts.HandleBus, syscall.SIGBUS)
	add(f.opts.HandleFpe, syscall.SIGFPE)
	add(f.opts.HandleIll, syscall.SIGILL)
	add(f.opts.HandleSegv, syscall.SIGSEGV)
	if len(sigs) == 0 {
		return
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		for sig := range ch {
			switch sig {
			case syscall.SIGUSR1, syscall.SIGUSR2:
				f.PrintFinalStats()
			case syscall.SIGALRM:
				f.alarmCallback()
			case syscall.SIGABRT, syscall.SIGBUS, syscall.SIGFPE, syscall.SIGILL, syscall.SIGSEGV:
				f.deadlySignalCallback(sig)
			default:
				log.Printf("==%v== libFuzzer: run interrupted; exiting\n", os.Getpid())
				f.PrintFinalStats()
				os.Exit(f.opts.InterruptExitCode)
			}
		}
	}()
}

func (f *Fuzzer) deadlySignalCallback(sig os.Signal) {
	log.Printf("==%v== ERROR: libFuzzer: deadly signal: %v\n", os.Getpid(), sig)
	log.Printf("DEDUP_TOKEN: deadly signal: %v\n", sig)
	if f.opts.SaveArtifacts && len(f.currentUnit) > 0 {
		f.dumpCurrentUnit(f.currentUnit, "crash-")
	}
	f.PrintFinalStats()
	os.Exit(f.opts.ErrorExitCode)
}

// alarmCallback reports a unit timeout and exits with the timeout exit code.
func (f *Fuzzer) alarmCallback() {
	log.Printf("ALARM: working on the last Unit for %v seconds\n", f.opts.UnitTimeoutSec)
	log.Printf("==%v== ERROR: libFuzzer: timeout after %v seconds\n", os.Getpid(), f.opts.UnitTimeoutSec)
	if f.opts.SaveArtifacts && len(f.currentUnit) > 0 {
		f.dumpCurrentUnit(f.currentUnit, "timeout-")
	}
	f.PrintFinalStats()
	os.Exit(f.opts.TimeoutExitCode)
}

// StaticExitCallback flushes pending state at normal process exit.
func (f *Fuzzer) StaticExitCallback() {
	f.PrintFinalStats()
}
