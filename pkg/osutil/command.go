// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Command represents an argv to be executed as a subprocess, with helpers to
// add/remove -flag=value tokens and positional arguments and to redirect
// output. It mirrors the self-reinvocation commands the driver builds for
// workers, crash minimization and cleansing.
type Command struct {
	args           []string
	outputFile     string
	combinedOutErr bool
}

func NewCommand(args []string) *Command {
	cmd := &Command{args: make([]string, len(args))}
	copy(cmd.args, args)
	return cmd
}

func (cmd *Command) Clone() *Command {
	c := NewCommand(cmd.args)
	c.outputFile = cmd.outputFile
	c.combinedOutErr = cmd.combinedOutErr
	return c
}

func (cmd *Command) Args() []string {
	return cmd.args
}

// AddFlag appends -name=value.
func (cmd *Command) AddFlag(name, value string) {
	cmd.args = append(cmd.args, "-"+name+"="+value)
}

// RemoveFlag removes every -name=value token (exact name match up to '=').
func (cmd *Command) RemoveFlag(name string) {
	prefix := "-" + name + "="
	args := cmd.args[:0]
	for _, arg := range cmd.args {
		if strings.HasPrefix(arg, prefix) {
			continue
		}
		args = append(args, arg)
	}
	cmd.args = args
}

func (cmd *Command) AddArgument(arg string) {
	cmd.args = append(cmd.args, arg)
}

func (cmd *Command) RemoveArgument(arg string) {
	args := cmd.args[:0]
	for _, a := range cmd.args {
		if a == arg {
			continue
		}
		args = append(args, a)
	}
	cmd.args = args
}

func (cmd *Command) HasArgument(arg string) bool {
	for _, a := range cmd.args {
		if a == arg {
			return true
		}
	}
	return false
}

// SetOutputFile redirects the subprocess stdout to the given file.
func (cmd *Command) SetOutputFile(path string) {
	cmd.outputFile = path
}

// CombineOutAndErr redirects the subprocess stderr to wherever stdout goes.
func (cmd *Command) CombineOutAndErr() {
	cmd.combinedOutErr = true
}

func (cmd *Command) String() string {
	return strings.Join(cmd.args, " ")
}

// VerboseError is an execution error that carries the subprocess output
// and exit code.
type VerboseError struct {
	Title    string
	Output   []byte
	ExitCode int
}

func (err *VerboseError) Error() string {
	if len(err.Output) == 0 {
		return err.Title
	}
	return fmt.Sprintf("%v\n%s", err.Title, err.Output)
}

// Execute runs the command to completion and returns its exit code.
// Output goes to the configured output file, or is discarded if none is set.
// A negative exit code is returned if the process could not be started or
// was killed by a signal.
func (cmd *Command) Execute() int {
	code, _ := cmd.run(nil)
	return code
}

// ExecuteWithOutput runs the command and returns its stdout (plus stderr if
// CombineOutAndErr was called) instead of writing it to the output file.
// Used where the caller needs to scan the output (dedup tokens).
func (cmd *Command) ExecuteWithOutput() (string, int) {
	buf := new(bytes.Buffer)
	code, _ := cmd.run(buf)
	return buf.String(), code
}

func (cmd *Command) run(capture *bytes.Buffer) (int, error) {
	if len(cmd.args) == 0 {
		return -1, fmt.Errorf("empty command")
	}
	c := exec.Command(cmd.args[0], cmd.args[1:]...)
	setPdeathsig(c)
	var outFile *os.File
	switch {
	case capture != nil:
		c.Stdout = capture
		if cmd.combinedOutErr {
			c.Stderr = capture
		}
	case cmd.outputFile != "":
		f, err := os.OpenFile(cmd.outputFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, DefaultFilePerm)
		if err != nil {
			return -1, fmt.Errorf("failed to open %v: %w", cmd.outputFile, err)
		}
		outFile = f
		c.Stdout = f
		if cmd.combinedOutErr {
			c.Stderr = f
		}
	}
	err := c.Run()
	if outFile != nil {
		outFile.Close()
	}
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
