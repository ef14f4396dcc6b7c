// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package osutil contains filesystem and process helpers shared by the driver
// and the fuzzing loop.
package osutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultDirPerm  = 0755
	DefaultFilePerm = 0644
)

// IsExist returns true if the file name exists.
func IsExist(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// IsFile returns true if name exists and is a regular file.
func IsFile(name string) bool {
	st, err := os.Stat(name)
	return err == nil && st.Mode().IsRegular()
}

// IsDir returns true if name exists and is a directory.
func IsDir(name string) bool {
	st, err := os.Stat(name)
	return err == nil && st.IsDir()
}

func MkdirAll(dir string) error {
	return os.MkdirAll(dir, DefaultDirPerm)
}

// DirName returns the directory component of path ("." for a bare file name).
func DirName(path string) string {
	return filepath.Dir(path)
}

// IsSeparator reports whether c is a path separator on this platform.
func IsSeparator(c byte) bool {
	return os.IsPathSeparator(c)
}

// ReadFile reads the whole file. If maxLen is non-zero the result is
// truncated to maxLen bytes.
func ReadFile(path string, maxLen int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", path, err)
	}
	if maxLen != 0 && len(data) > maxLen {
		data = data[:maxLen]
	}
	return data, nil
}

func WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, DefaultFilePerm)
}

func RemoveFile(path string) error {
	return os.Remove(path)
}

// TempPath returns a unique path in the temp dir with the given prefix and
// extension. The file is not created.
func TempPath(prefix, ext string) string {
	return filepath.Join(os.TempDir(), prefix+"-"+uuid.NewString()+ext)
}

// FileSize returns the size of the file, or 0 if it does not exist.
func FileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}

// SizedFile is the enumeration unit for corpus directories.
type SizedFile struct {
	Path string
	Size int64
}

// GetSizedFilesFromDir appends all regular files under dir (recursively) to
// files. An error on any entry, including dir itself, stops the walk and is
// returned.
func GetSizedFilesFromDir(dir string, files *[]SizedFile) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			*files = append(*files, SizedFile{Path: path, Size: info.Size()})
		}
		return nil
	})
}

// SortSizedFiles orders files by size, then path, to give deterministic
// scheduling of corpus units.
func SortSizedFiles(files []SizedFile) {
	sort.Slice(files, func(i, j int) bool {
		if files[i].Size != files[j].Size {
			return files[i].Size < files[j].Size
		}
		return files[i].Path < files[j].Path
	})
}

// ReadDirToUnits reads every regular file under dir into a byte slice,
// truncating to maxLen, smallest files first. Unreadable files are skipped.
func ReadDirToUnits(dir string, maxLen int) ([][]byte, error) {
	var sized []SizedFile
	if err := GetSizedFilesFromDir(dir, &sized); err != nil {
		return nil, err
	}
	SortSizedFiles(sized)
	var units [][]byte
	for _, f := range sized {
		data, err := ReadFile(f.Path, maxLen)
		if err != nil {
			continue
		}
		units = append(units, data)
	}
	return units, nil
}

func NumberOfCPUCores() int {
	return runtime.NumCPU()
}

func SleepSeconds(seconds int) {
	time.Sleep(time.Duration(seconds) * time.Second)
}

func GetPid() int {
	return os.Getpid()
}
