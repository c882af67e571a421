package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yanizio/harvest/internal/batch"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one harvest pass and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.job().Run(ctx)
		if rep != nil {
			printReport(cmd.OutOrStdout(), rep)
		}
		return err
	},
}

func init() { rootCmd.AddCommand(runCmd) }

func printReport(w io.Writer, rep *batch.Report) {
	fmt.Fprintln(w, styleHeader.Render("Harvest "+rep.JobID))
	fmt.Fprintln(w, styleDim.Render(fmt.Sprintf("since %s  rules %s  took %s",
		rep.Since.Format("2006-01-02 15:04:05Z07:00"), rep.RulesetVersion, rep.Duration.Round(time.Millisecond))))
	for _, o := range rep.Records {
		printVerdict(w, o.UUID, o.Valid, o.Errors)
	}
	summary := fmt.Sprintf("%d records, %d valid, %d invalid", rep.Total, rep.Valid, rep.Invalid)
	if rep.Invalid > 0 {
		fmt.Fprintln(w, styleFail.Render(summary))
	} else {
		fmt.Fprintln(w, styleOK.Render(summary))
	}
	if rep.NotifyErr != nil {
		fmt.Fprintln(w, styleFail.Render("notifications:"), rep.NotifyErr)
	}
}

func printVerdict(w io.Writer, name string, valid bool, errs []string) {
	if valid {
		fmt.Fprintln(w, styleOK.Render("✔"), name)
		return
	}
	fmt.Fprintln(w, styleFail.Render("✘"), name)
	for _, e := range errs {
		fmt.Fprintln(w, "   ", styleDim.Render("-"), e)
	}
}
