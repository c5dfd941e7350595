package commands

import (
	"bytes"
	"io"
	"os"
	"regexp"

	"github.com/pterm/pterm"
)

// captureStdout captures stdout during the execution of f, disables pterm color, and strips ANSI codes from the output.
func captureStdout(f func()) string {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	// Save original pterm settings and default printer writers
	oldPrintColor := pterm.PrintColor
	oldOutput := pterm.Output
	oldDefaultTableWriter := pterm.DefaultTable.Writer
	oldInfoWriter := pterm.Info.Writer
	oldWarningWriter := pterm.Warning.Writer
	oldSuccessWriter := pterm.Success.Writer
	oldErrorWriter := pterm.Error.Writer

	pterm.PrintColor = false
	pterm.Output = true
	pterm.SetDefaultOutput(w)
	pterm.DefaultTable.Writer = w
	// The prefix printers capture os.Stdout into their Writer at package
	// init, so swapping os.Stdout alone does not redirect them.
	pterm.Info.Writer = w
	pterm.Warning.Writer = w
	pterm.Success.Writer = w
	pterm.Error.Writer = w

	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	f()

	w.Close()
	os.Stdout = oldStdout

	// Restore pterm
	pterm.PrintColor = oldPrintColor
	pterm.Output = oldOutput
	pterm.SetDefaultOutput(oldStdout)
	pterm.DefaultTable.Writer = oldDefaultTableWriter
	pterm.Info.Writer = oldInfoWriter
	pterm.Warning.Writer = oldWarningWriter
	pterm.Success.Writer = oldSuccessWriter
	pterm.Error.Writer = oldErrorWriter

	out := <-outC

	// Strip ANSI escape codes
	ansiRegex := regexp.MustCompile(`\x1b\[[0-9;]*m`)
	return ansiRegex.ReplaceAllString(out, "")
}
