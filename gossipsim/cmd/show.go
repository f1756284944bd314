package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/gossiplearn/datarecording"
	"github.com/sarchlab/gossiplearn/tracing"
)

var showFlags struct {
	scope string
	run   string
	runs  bool
}

var showCmd = &cobra.Command{
	Use:   "show <file.sqlite3>",
	Short: "Print the evaluations recorded by a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		w := cmd.OutOrStdout()

		if showFlags.runs {
			runs, err := reader.Distinct(cmd.Context(),
				tracing.EvaluationTable, "Run", datarecording.QueryParams{})
			if err != nil {
				return err
			}

			for _, run := range runs {
				fmt.Fprintln(w, run)
			}

			return nil
		}

		reader.MapTable(tracing.EvaluationTable, tracing.EvaluationEntry{})

		params := datarecording.QueryParams{
			Where:   "Scope = ?",
			Args:    []any{showFlags.scope},
			OrderBy: "Run, Round",
		}
		if showFlags.run != "" {
			params.Where += " AND Run = ?"
			params.Args = append(params.Args, showFlags.run)
		}

		rows, _, err := reader.Query(cmd.Context(), tracing.EvaluationTable, params)
		if err != nil {
			return err
		}

		fmt.Fprintln(w, headerColor(fmt.Sprintf("%-24s %6s %9s %9s %9s %9s %9s",
			"run", "round", "accuracy", "precision", "recall", "f1", "auc")))

		for _, row := range rows {
			e := row.(*tracing.EvaluationEntry)
			fmt.Fprintf(w, "%-24s %6d %9.4f %9.4f %9.4f %9.4f %9.4f\n",
				e.Run, e.Round, e.Accuracy, e.Precision, e.Recall, e.F1, e.AUC)
		}

		return nil
	},
}

func init() {
	showCmd.Flags().StringVar(&showFlags.scope, "scope", "global", "global or user")
	showCmd.Flags().StringVar(&showFlags.run, "run", "", "only this simulation")
	showCmd.Flags().BoolVar(&showFlags.runs, "runs", false, "list the recorded simulations instead")

	rootCmd.AddCommand(showCmd)
}
