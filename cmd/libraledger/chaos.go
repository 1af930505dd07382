package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"libraledger/internal/chaos"
	"libraledger/internal/logger"
)

type chaosOptions struct {
	target         string
	duration       time.Duration
	sampleInterval time.Duration
	pause          time.Duration
	logLevel       string
}

func newChaosCmd() *cobra.Command {
	var opts chaosOptions

	cmd := &cobra.Command{
		Use:   "chaos",
		Short: "Run the borrow race and churn experiments against a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger.New(os.Stderr, opts.logLevel)

			engine := chaos.NewEngine(
				chaos.WithLogger(log),
				chaos.WithSampleInterval(opts.sampleInterval),
				chaos.WithPause(opts.pause),
			)
			engine.RegisterExperiments(chaos.NewTarget(opts.target, nil), opts.duration)

			results, err := engine.RunGameDay(cmd.Context(), chaos.GameDay{
				Name:      "libraledger game day",
				Date:      time.Now(),
				Scenarios: engine.Experiments(),
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if !r.HypothesisHeld {
					failed++
				}
			}
			if skipped := len(engine.Experiments()) - len(results); skipped > 0 {
				return fmt.Errorf("%d experiments could not run", skipped)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d hypotheses violated", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.target, "target", "", "base URL of the lending server")
	cmd.Flags().DurationVar(&opts.duration, "duration", 10*time.Second, "observation window per experiment")
	cmd.Flags().DurationVar(&opts.sampleInterval, "sample-interval", time.Second, "metric sampling interval")
	cmd.Flags().DurationVar(&opts.pause, "pause", 5*time.Second, "wait between experiments")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}
