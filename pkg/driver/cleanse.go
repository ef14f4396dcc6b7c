// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package driver

import (
	"os"

	"github.com/google/fuzzdriver/pkg/fuzzer"
	"github.com/google/fuzzdriver/pkg/log"
	"github.com/google/fuzzdriver/pkg/osutil"
)

// cleanseCrashInput replaces every byte that is not essential for the crash
// with one of the replacement bytes (space or 0xFF), leaving only the bytes
// that the bug actually depends on. At every committed step the buffer still
// reproduces the crash.
func cleanseCrashInput(args, inputs []string, opts fuzzer.Options) int {
	if len(inputs) != 1 || opts.ExactArtifactPath == "" {
		log.Printf("ERROR: -cleanse_crash should be given one input file and -exact_artifact_path\n")
		os.Exit(1)
	}
	inputFilePath := inputs[0]
	outputFilePath := opts.ExactArtifactPath
	cmd := osutil.NewCommand(args)
	cmd.RemoveFlag("cleanse_crash")
	cmd.RemoveArgument(inputFilePath)

	tmpFilePath := osutil.TempPath("CleanseCrashInput", ".repro")
	cmd.AddArgument(tmpFilePath)
	cmd.SetOutputFile(osutil.DevNull())
	cmd.CombineOutAndErr()

	data, err := osutil.ReadFile(inputFilePath, 0)
	if err != nil {
		log.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	size := len(data)

	replacementBytes := []byte{' ', 0xff}
	for numAttempts := 0; numAttempts < 5; numAttempts++ {
		changed := false
		for idx := 0; idx < size; idx++ {
			log.Printf("CLEANSE[%v]: Trying to replace byte %v of %v\n", numAttempts, idx, size)
			originalByte := data[idx]
			if originalByte == replacementBytes[0] || originalByte == replacementBytes[1] {
				continue
			}
			for _, newByte := range replacementBytes {
				data[idx] = newByte
				if err := osutil.WriteFile(tmpFilePath, data); err != nil {
					log.Printf("ERROR: %v\n", err)
					os.Exit(1)
				}
				exitCode := cmd.Execute()
				osutil.RemoveFile(tmpFilePath)
				if exitCode == 0 {
					data[idx] = originalByte
				} else {
					changed = true
					log.Printf("CLEANSE: Replaced byte %v with 0x%x\n", idx, newByte)
					if err := osutil.WriteFile(outputFilePath, data); err != nil {
						log.Printf("ERROR: %v\n", err)
						os.Exit(1)
					}
					break
				}
			}
		}
		if !changed {
			break
		}
	}
	return 0
}
