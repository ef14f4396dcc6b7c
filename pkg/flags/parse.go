// Copyright 2024 fuzzdriver project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package flags

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/fuzzdriver/pkg/log"
)

// FlagValue returns the value part of param if param has exactly the form
// -name=value, and reports whether it matched. The name must match up to the
// '=' sign; -foobar=x does not match flag "foo".
func FlagValue(param, name string) (string, bool) {
	if len(param) >= len(name)+2 && param[0] == '-' &&
		param[1:len(name)+1] == name && param[len(name)+1] == '=' {
		return param[len(name)+2:], true
	}
	return "", false
}

// MyStol parses a decimal integer with an optional leading '-', stopping at
// the first non-digit and returning whatever was parsed so far. Malformed
// input is not an error: "123x4" parses as 123, "" and "-" parse as 0.
func MyStol(str string) int64 {
	var res int64
	sign := int64(1)
	if strings.HasPrefix(str, "-") {
		str = str[1:]
		sign = -1
	}
	for i := 0; i < len(str); i++ {
		ch := str[i]
		if ch < '0' || ch > '9' {
			return res * sign
		}
		res = res*10 + int64(ch-'0')
	}
	return res * sign
}

var printedDashDashWarning bool

// ParseOneFlag dispatches one argv token into the registry. It returns true
// if the token was consumed as a flag (known, unknown, or '--'-prefixed) and
// false if it is a positional input.
func ParseOneFlag(descs []Desc, f *Flags, param string) bool {
	if !strings.HasPrefix(param, "-") {
		return false
	}
	if strings.HasPrefix(param, "--") {
		if !printedDashDashWarning {
			printedDashDashWarning = true
			log.Printf("INFO: libFuzzer ignores flags that start with '--'\n")
		}
		for i := range descs {
			if _, ok := FlagValue(param[1:], descs[i].Name); ok {
				log.Printf("WARNING: did you mean '%s' (single dash)?\n", param[1:])
			}
		}
		return true
	}
	for i := range descs {
		d := &descs[i]
		str, ok := FlagValue(param, d.Name)
		if !ok {
			continue
		}
		switch {
		case d.IntFlag != nil:
			val := MyStol(str)
			*d.IntFlag = int(val)
			if f.Verbosity >= 2 {
				log.Printf("Flag: %s %d\n", d.Name, val)
			}
		case d.UintFlag != nil:
			val, err := strconv.ParseUint(str, 10, 32)
			if err != nil {
				log.Fatalf("invalid value for flag -%v: %q", d.Name, str)
			}
			*d.UintFlag = uint(val)
			if f.Verbosity >= 2 {
				log.Printf("Flag: %s %d\n", d.Name, val)
			}
		case d.StrFlag != nil:
			*d.StrFlag = str
			if f.Verbosity >= 2 {
				log.Printf("Flag: %s %s\n", d.Name, str)
			}
		default:
			log.Printf("Flag: %s: deprecated, don't use\n", d.Name)
		}
		return true
	}
	log.Printf("\n\nWARNING: unrecognized flag '%s'; "+
		"use -help=1 to list all flags\n\n", param)
	return true
}

// ParseFlags populates a Flags value from args (args[0] is the program name)
// and returns it together with the remaining positional inputs.
// If the target links a custom mutator, len_control is forced to 0 before
// user flags are applied.
func ParseFlags(args []string, customMutator bool) (*Flags, []string) {
	f := new(Flags)
	descs := Registry(f)
	for i := range descs {
		d := &descs[i]
		switch {
		case d.IntFlag != nil:
			*d.IntFlag = d.Default
		case d.UintFlag != nil:
			*d.UintFlag = uint(d.Default)
		}
	}
	if customMutator {
		f.LenControl = 0
		log.Printf("INFO: found LLVMFuzzerCustomMutator. Disabling -len_control by default.\n")
	}
	var inputs []string
	for i := 1; i < len(args); i++ {
		if ParseOneFlag(descs, f, args[i]) {
			if f.IgnoreRemainingArgs != 0 {
				break
			}
			continue
		}
		inputs = append(inputs, args[i])
	}
	return f, inputs
}

// CloneArgsWithoutX returns a copy of args with every token matching either
// of the two forbidden flag names removed; relative order is preserved.
func CloneArgsWithoutX(args []string, x1, x2 string) []string {
	var res []string
	for _, arg := range args {
		if _, ok := FlagValue(arg, x1); ok {
			continue
		}
		if _, ok := FlagValue(arg, x2); ok {
			continue
		}
		res = append(res, arg)
	}
	return res
}

// PrintHelp renders the usage text. Flags are printed in declaration order,
// names right-padded to the longest; internal flags are suppressed.
func PrintHelp(progName string, w io.Writer) {
	fmt.Fprintf(w, "Usage:\n")
	fmt.Fprintf(w, "\nTo run fuzzing pass 0 or more directories.\n")
	fmt.Fprintf(w, "%s [-flag1=val1 [-flag2=val2 ...] ] [dir1 [dir2 ...] ]\n", progName)
	fmt.Fprintf(w, "\nTo run individual tests without fuzzing pass 1 or more files:\n")
	fmt.Fprintf(w, "%s [-flag1=val1 [-flag2=val2 ...] ] file1 [file2 ...]\n", progName)
	fmt.Fprintf(w, "\nFlags: (strictly in form -flag=value)\n")
	descs := Registry(new(Flags))
	maxLen := 0
	for i := range descs {
		if len(descs[i].Name) > maxLen {
			maxLen = len(descs[i].Name)
		}
	}
	for i := range descs {
		d := &descs[i]
		if strings.HasPrefix(d.Description, "internal flag") {
			continue
		}
		fmt.Fprintf(w, " %s%s\t%d\t%s\n", d.Name,
			strings.Repeat(" ", maxLen-len(d.Name)), d.Default, d.Description)
	}
	fmt.Fprintf(w, "\nFlags starting with '--' will be ignored and "+
		"will be passed verbatim to subprocesses.\n")
}
