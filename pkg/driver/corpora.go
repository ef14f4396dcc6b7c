// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package driver

import (
	"os"
	"strings"

	"github.com/google/fuzzdriver/pkg/log"
	"github.com/google/fuzzdriver/pkg/osutil"
)

// parseSeedInputs parses -seed_inputs=file1,file2,... or
// -seed_inputs=@seed_inputs_file. The list is split right-to-left, so the
// returned order is the reverse of the textual order.
func parseSeedInputs(seedInputs string) []string {
	if seedInputs == "" {
		return nil
	}
	spec := seedInputs
	if strings.HasPrefix(spec, "@") {
		data, err := osutil.ReadFile(spec[1:], 0)
		if err != nil {
			spec = ""
		} else {
			spec = string(data)
		}
	}
	if spec == "" {
		log.Printf("seed_inputs is empty or @file does not exist.\n")
		os.Exit(1)
	}
	var files []string
	for {
		comma := strings.LastIndexByte(spec, ',')
		if comma < 0 {
			break
		}
		files = append(files, spec[comma+1:])
		spec = spec[:comma]
	}
	files = append(files, spec)
	return files
}

// readCorpora enumerates the corpus directories plus any extra seed files
// into one sized-file list.
func readCorpora(corpusDirs, extraSeedFiles []string) []osutil.SizedFile {
	var sizedFiles []osutil.SizedFile
	lastNumFiles := 0
	for _, dir := range corpusDirs {
		if err := osutil.GetSizedFilesFromDir(dir, &sizedFiles); err != nil {
			log.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
		log.Printf("INFO: %8v files found in %v\n", len(sizedFiles)-lastNumFiles, dir)
		lastNumFiles = len(sizedFiles)
	}
	for _, file := range extraSeedFiles {
		if size := osutil.FileSize(file); size > 0 {
			sizedFiles = append(sizedFiles, osutil.SizedFile{Path: file, Size: size})
		}
	}
	return sizedFiles
}

// readCorporaUnits loads all units from the corpus dirs into memory; used by
// the dictionary analyzer.
func readCorporaUnits(corpusDirs []string) [][]byte {
	var units [][]byte
	for _, dir := range corpusDirs {
		log.Printf("Loading corpus dir: %v\n", dir)
		dirUnits, err := osutil.ReadDirToUnits(dir, 0)
		if err != nil {
			log.Logf(1, "failed to read %v: %v", dir, err)
			continue
		}
		units = append(units, dirUnits...)
	}
	return units
}
