package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/sarchlab/gossiplearn/simulation"
)

var (
	headerColor = color.New(color.Bold, color.FgCyan).SprintFunc()
	goodColor   = color.New(color.FgGreen).SprintFunc()
	warnColor   = color.New(color.FgYellow).SprintFunc()
	errorColor  = color.New(color.Bold, color.FgRed).SprintFunc()
)

// printSummary writes one line per report and the mean final accuracy.
func printSummary(w io.Writer, reports []*simulation.Report) {
	fmt.Fprintln(w, headerColor(fmt.Sprintf("%-5s %8s %10s %12s %8s %8s %9s",
		"rep", "rounds", "messages", "bytes", "dropped", "offline", "accuracy")))

	var sum float64
	var n int

	for i, r := range reports {
		acc := "-"
		if accs := r.Accuracy(); len(accs) > 0 {
			a := accs[len(accs)-1]
			acc = fmt.Sprintf("%.4f", a)
			sum += a
			n++
		}

		line := fmt.Sprintf("%-5d %8d %10d %12d %8d %8d %9s",
			i, len(r.Evaluations), r.Messages, r.Bytes,
			r.Dropped, r.Offline, acc)
		if r.Interrupted {
			line = warnColor(line + "  (interrupted)")
		}

		fmt.Fprintln(w, line)
	}

	if n > 0 {
		fmt.Fprintln(w, goodColor(fmt.Sprintf("mean final accuracy: %.4f over %d run(s)",
			sum/float64(n), n)))
	}
}
