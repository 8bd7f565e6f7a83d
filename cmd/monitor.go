package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blocktrace/blocktrace/internal/esg"
	"github.com/blocktrace/blocktrace/internal/monitoring"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch ESG scores and alert on changes",
	Long:  "Polls the ESG scores visible to monitoring.principal and posts an alert to the webhook when a score appears or moves by the change threshold.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg, "monitor")
		if err != nil {
			return err
		}
		defer env.Close()

		checker := newChecker(env)

		if once, _ := cmd.Flags().GetBool("once"); once {
			checker.Check(ctx)
			snap := checker.Last()
			if snap == nil {
				return eris.New("monitor: no scores collected")
			}
			formatSnapshot(os.Stdout, snap)
			return nil
		}

		zap.L().Info("monitor started",
			zap.String("principal", cfg.Monitoring.Principal),
			zap.Int("interval_secs", cfg.Monitoring.CheckIntervalSecs),
		)
		checker.Run(ctx)
		return nil
	},
}

func init() {
	monitorCmd.Flags().Bool("once", false, "collect once, print the scores and exit")
	rootCmd.AddCommand(monitorCmd)
}

func newChecker(env *appEnv) *monitoring.Checker {
	return monitoring.NewChecker(
		monitoring.NewCollector(env.Backend, cfg.Monitoring.Principal),
		monitoring.NewAlerter(cfg.Monitoring),
		cfg.Monitoring,
	)
}

// formatSnapshot writes the collected scores to out.
func formatSnapshot(out io.Writer, s *monitoring.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PRODUCT\tSCORE\tLABEL")
	_, _ = fmt.Fprintln(w, "-------\t-----\t-----")
	for _, id := range s.ProductIDs() {
		sc := s.Scores[id]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", id, sc.SustainabilityScore, esg.Label(int(sc.SustainabilityScore)))
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\nCollected %d scores at %s\n", len(s.Scores), s.CollectedAt.Format("2006-01-02 15:04:05"))
}
