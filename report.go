package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abhinav/shelltest/internal/scenario"
	"github.com/abhinav/shelltest/internal/shell"
	"github.com/mattn/go-runewidth"
)

type summary struct {
	Passed, Failed int
}

// report writes a line for each result, with details for failures,
// followed by a summary.
//
//	PASS  arithmetic             3ms
//	FAIL  wrong answer (step 2)  5ms
//	      unexpected output for "SELECT 1+1;": want "3"
func report(w io.Writer, results []scenario.Result) summary {
	labels := make([]string, len(results))
	var width int
	for i, r := range results {
		label := r.Test
		if r.Step > 0 {
			label += fmt.Sprintf(" (step %d)", r.Step)
		}
		labels[i] = label
		width = max(width, runewidth.StringWidth(label))
	}

	var (
		sum      summary
		lastFile string
	)
	for i, r := range results {
		if r.File != lastFile && len(r.File) > 0 {
			fmt.Fprintf(w, "%v\n", r.File)
			lastFile = r.File
		}

		status := "PASS"
		if r.Failed() {
			status = "FAIL"
			sum.Failed++
		} else {
			sum.Passed++
		}

		fmt.Fprintf(w, "  %v  %v  %v\n", status,
			runewidth.FillRight(labels[i], width),
			r.Duration.Round(time.Millisecond))

		if r.Failed() {
			msg := r.Err.Error()
			if shell.IsFault(r.Err) {
				msg = "shell fault: " + msg
			}
			writeIndented(w, "        ", msg)
		}
	}

	fmt.Fprintf(w, "\n%d passed, %d failed\n", sum.Passed, sum.Failed)
	return sum
}

func writeIndented(w io.Writer, indent, s string) {
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		if len(line) == 0 {
			fmt.Fprintln(w)
			continue
		}
		fmt.Fprintf(w, "%v%v\n", indent, line)
	}
}
