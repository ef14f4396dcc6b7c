// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package driver

import (
	"os"

	"github.com/google/fuzzdriver/pkg/fuzzer"
	"github.com/google/fuzzdriver/pkg/log"
	"github.com/google/fuzzdriver/pkg/merge"
	"github.com/google/fuzzdriver/pkg/osutil"
)

// runMerge merges the 2nd and following corpus dirs into the first one:
// only the inputs that add features over the first corpus are written to the
// output corpus. Terminal; exits the process.
func runMerge(fz *fuzzer.Fuzzer, opts fuzzer.Options, args, corpora []string,
	controlFilePath string, setCover bool) {
	if len(corpora) < 2 {
		log.Printf("INFO: Merge requires two or more corpus dirs\n")
		os.Exit(0)
	}
	var oldCorpus, newCorpus []osutil.SizedFile
	if err := osutil.GetSizedFilesFromDir(corpora[0], &oldCorpus); err != nil {
		log.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	for _, dir := range corpora[1:] {
		if err := osutil.GetSizedFilesFromDir(dir, &newCorpus); err != nil {
			log.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	}
	osutil.SortSizedFiles(oldCorpus)
	osutil.SortSizedFiles(newCorpus)

	cfPath := controlFilePath
	if cfPath == "" {
		cfPath = osutil.TempPath("Merge", ".txt")
	}
	newFiles, err := merge.CrashResistantMerge(args, oldCorpus, newCorpus, cfPath, setCover)
	if err != nil {
		log.Printf("ERROR: merge failed: %v\n", err)
		os.Exit(1)
	}
	for _, path := range newFiles {
		data, err := osutil.ReadFile(path, opts.MaxLen)
		if err != nil {
			log.Logf(1, "skipping %v: %v", path, err)
			continue
		}
		if err := fz.Corpus().WriteToOutputCorpus(data); err != nil {
			log.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	}
	if controlFilePath == "" {
		osutil.RemoveFile(cfPath)
	}
	os.Exit(0)
}
