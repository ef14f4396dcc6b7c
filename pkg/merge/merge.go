// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package merge implements crash-resistant corpus merging.
//
// The merge state lives in a text control file so that a merge interrupted
// by a crashing input can be resumed by a fresh subprocess:
//
//	3          total number of files
//	1          number of files in the first (old) corpus
//	fileA      one path per line
//	fileB
//	fileC
//	STARTED 0 123
//	FT 0 1 4 5
//	COV 0 7 8
//	STARTED 1 456
//	...
//
// A STARTED line without a following FT line marks the input that killed the
// previous merge process; the resumed merge skips it.
package merge

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/fuzzdriver/pkg/log"
	"github.com/google/fuzzdriver/pkg/osutil"
	"github.com/google/fuzzdriver/pkg/signal"
)

type FileInfo struct {
	Name     string
	Size     int64
	Features []uint32
	Cov      []uint32
	Done     bool
}

type Merger struct {
	Files                 []FileInfo
	NumFilesInFirstCorpus int
	FirstNotProcessedFile int
	LastFailure           string
}

// WriteControlFile writes the header for a fresh merge of the two cohorts.
func WriteControlFile(path string, oldCorpus, newCorpus []osutil.SizedFile) error {
	buf := new(strings.Builder)
	fmt.Fprintf(buf, "%d\n%d\n", len(oldCorpus)+len(newCorpus), len(oldCorpus))
	for _, f := range oldCorpus {
		fmt.Fprintf(buf, "%s\n", f.Path)
	}
	for _, f := range newCorpus {
		fmt.Fprintf(buf, "%s\n", f.Path)
	}
	return osutil.WriteFile(path, []byte(buf.String()))
}

// ParseControlFile reads the merge state left by previous inner steps.
func ParseControlFile(r io.Reader) (*Merger, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	readLine := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		return scanner.Text(), true
	}
	header, ok := readLine()
	if !ok {
		return nil, fmt.Errorf("empty control file")
	}
	numFiles, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || numFiles < 0 {
		return nil, fmt.Errorf("bad number of files %q", header)
	}
	firstLine, ok := readLine()
	if !ok {
		return nil, fmt.Errorf("truncated control file header")
	}
	numFirst, err := strconv.Atoi(strings.TrimSpace(firstLine))
	if err != nil || numFirst < 0 || numFirst > numFiles {
		return nil, fmt.Errorf("bad first corpus size %q", firstLine)
	}
	m := &Merger{NumFilesInFirstCorpus: numFirst}
	for i := 0; i < numFiles; i++ {
		name, ok := readLine()
		if !ok {
			return nil, fmt.Errorf("truncated control file: %v file names, want %v", i, numFiles)
		}
		m.Files = append(m.Files, FileInfo{Name: name})
	}
	started := -1
	for {
		line, ok := readLine()
		if !ok {
			break
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("bad control file line %q", line)
		}
		idx, err := strconv.Atoi(fields[1])
		if err != nil || idx < 0 || idx >= numFiles {
			return nil, fmt.Errorf("bad file index in %q", line)
		}
		switch fields[0] {
		case "STARTED":
			if len(fields) != 3 {
				return nil, fmt.Errorf("bad STARTED line %q", line)
			}
			size, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad size in %q", line)
			}
			m.Files[idx].Size = size
			started = idx
		case "FT":
			m.Files[idx].Features = parseUint32s(fields[2:])
			m.Files[idx].Done = true
			m.FirstNotProcessedFile = idx + 1
			started = -1
		case "COV":
			m.Files[idx].Cov = parseUint32s(fields[2:])
		default:
			return nil, fmt.Errorf("unknown control file verb %q", fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if started >= 0 {
		// The previous process died on this input.
		m.LastFailure = m.Files[started].Name
		m.FirstNotProcessedFile = started + 1
	}
	return m, nil
}

func parseUint32s(fields []string) []uint32 {
	res := make([]uint32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			continue
		}
		res = append(res, uint32(v))
	}
	return res
}

// Merge computes which files from the second cohort add features over the
// first cohort. With setCover the selection is greedy by most-new-features;
// otherwise files are considered smallest-first and taken whenever they add
// at least one new feature.
func (m *Merger) Merge(setCover bool) (newFiles []string, newFeatures, newCov []uint32) {
	var initial signal.Signal
	var initialCov signal.Signal
	for i := 0; i < m.NumFilesInFirstCorpus; i++ {
		initial.Merge(signal.FromRaw(m.Files[i].Features))
		initialCov.Merge(signal.FromRaw(m.Files[i].Cov))
	}
	type candidate struct {
		name string
		size int64
		sign signal.Signal
		cov  signal.Signal
	}
	var leftover []candidate
	for i := m.NumFilesInFirstCorpus; i < len(m.Files); i++ {
		f := &m.Files[i]
		if !f.Done {
			continue
		}
		leftover = append(leftover, candidate{
			name: f.Name,
			size: f.Size,
			sign: signal.FromRaw(f.Features),
			cov:  signal.FromRaw(f.Cov),
		})
	}
	have := initial.Copy()
	var gainedFeatures signal.Signal
	var gainedCov signal.Signal
	if setCover {
		for {
			best, bestGain := -1, 0
			for i, c := range leftover {
				if c.sign == nil {
					continue
				}
				gain := have.Diff(c.sign).Len()
				if gain > bestGain || gain == bestGain && gain > 0 &&
					best >= 0 && c.size < leftover[best].size {
					best, bestGain = i, gain
				}
			}
			if best < 0 || bestGain == 0 {
				break
			}
			c := &leftover[best]
			gainedFeatures.Merge(have.Diff(c.sign))
			have.Merge(c.sign)
			gainedCov.Merge(initialCov.Diff(c.cov))
			initialCov.Merge(c.cov)
			newFiles = append(newFiles, c.name)
			c.sign = nil
		}
	} else {
		sort.SliceStable(leftover, func(i, j int) bool { return leftover[i].size < leftover[j].size })
		for _, c := range leftover {
			diff := have.Diff(c.sign)
			if diff.Empty() {
				continue
			}
			gainedFeatures.Merge(diff)
			have.Merge(c.sign)
			gainedCov.Merge(initialCov.Diff(c.cov))
			initialCov.Merge(c.cov)
			newFiles = append(newFiles, c.name)
		}
	}
	return newFiles, gainedFeatures.ToRaw(), gainedCov.ToRaw()
}

// CrashResistantMerge drives inner merge steps in subprocesses until every
// file is processed, then computes the merged selection. A subprocess that
// crashes on an input is restarted; the control file carries the progress.
func CrashResistantMerge(args []string, oldCorpus, newCorpus []osutil.SizedFile,
	cfPath string, setCover bool) ([]string, error) {
	resuming := false
	if osutil.FileSize(cfPath) > 0 {
		if m, err := parseControlFilePath(cfPath); err == nil &&
			len(m.Files) == len(oldCorpus)+len(newCorpus) {
			resuming = true
			log.Printf("MERGE-OUTER: resuming merge from the control file; %v of %v files processed\n",
				m.FirstNotProcessedFile, len(m.Files))
		}
	}
	if !resuming {
		if err := WriteControlFile(cfPath, oldCorpus, newCorpus); err != nil {
			return nil, err
		}
	}
	innerFlag := "1"
	if setCover {
		innerFlag = "2"
	}
	total := len(oldCorpus) + len(newCorpus)
	// Each attempt must make progress past at least the crashing input, so
	// the number of subprocess spawns is bounded by the number of files.
	for attempt := 0; attempt <= total; attempt++ {
		m, err := parseControlFilePath(cfPath)
		if err != nil {
			return nil, err
		}
		if m.FirstNotProcessedFile >= len(m.Files) {
			newFiles, newFeatures, newCov := m.Merge(setCover)
			log.Printf("MERGE-OUTER: %v new files with %v new features added; %v new coverage edges\n",
				len(newFiles), len(newFeatures), len(newCov))
			return newFiles, nil
		}
		cmd := osutil.NewCommand(stripMergeFlags(args))
		cmd.AddFlag("merge_control_file", cfPath)
		cmd.AddFlag("merge_inner", innerFlag)
		cmd.CombineOutAndErr()
		log.Printf("MERGE-OUTER: attempt %v\n", attempt+1)
		if code := cmd.Execute(); code != 0 {
			log.Printf("MERGE-OUTER: subprocess exited with %v, will restart\n", code)
		}
	}
	return nil, fmt.Errorf("merge did not converge after %v attempts", total+1)
}

func stripMergeFlags(args []string) []string {
	cmd := osutil.NewCommand(args)
	for _, name := range []string{"merge", "set_cover_merge", "merge_inner",
		"merge_control_file", "jobs", "workers"} {
		cmd.RemoveFlag(name)
	}
	return cmd.Args()
}

func parseControlFilePath(path string) (*Merger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseControlFile(f)
}

// Executor runs one unit and reports its features and coverage; implemented
// by the fuzzer.
type Executor interface {
	ExecuteUnitForMerge(data []byte) (features, cov []uint32)
}

// InternalStep processes the not-yet-processed tail of the control file
// in-process. If an input crashes the target, the process dies with the
// STARTED line already appended, which is exactly the state the outer loop
// needs to skip the input on resume.
func InternalStep(exec Executor, cfPath string, maxLen int) error {
	m, err := parseControlFilePath(cfPath)
	if err != nil {
		return fmt.Errorf("failed to parse control file: %w", err)
	}
	cf, err := os.OpenFile(cfPath, os.O_WRONLY|os.O_APPEND, osutil.DefaultFilePerm)
	if err != nil {
		return err
	}
	defer cf.Close()
	log.Printf("MERGE-INNER: %v total files; %v processed\n", len(m.Files), m.FirstNotProcessedFile)
	for i := m.FirstNotProcessedFile; i < len(m.Files); i++ {
		name := m.Files[i].Name
		if m.LastFailure == name {
			continue
		}
		data, err := osutil.ReadFile(name, maxLen)
		if err != nil {
			log.Logf(1, "MERGE-INNER: skipping unreadable %v: %v", name, err)
			data = nil
		}
		fmt.Fprintf(cf, "STARTED %d %d\n", i, len(data))
		// Flush before execution; a crash must leave the STARTED line behind.
		if err := cf.Sync(); err != nil {
			return err
		}
		features, cov := exec.ExecuteUnitForMerge(data)
		fmt.Fprintf(cf, "FT %d%s\n", i, formatUint32s(features))
		fmt.Fprintf(cf, "COV %d%s\n", i, formatUint32s(cov))
	}
	return nil
}

func formatUint32s(vals []uint32) string {
	buf := new(strings.Builder)
	for _, v := range vals {
		fmt.Fprintf(buf, " %d", v)
	}
	return buf.String()
}
