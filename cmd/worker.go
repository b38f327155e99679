package cmd

import (
	"billnotify/internal/worker"
	"time"

	"github.com/spf13/cobra"
)

func workerCmd() *cobra.Command {
	var (
		consumerName string
		concurrency  int
		baseBackoff  time.Duration
		maxBackoff   time.Duration
	)

	var command = &cobra.Command{
		Use:   "worker",
		Short: "Start notification worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return worker.Run(worker.Config{
				ConsumerName: consumerName,
				Concurrency:  concurrency,
				BaseBackoff:  baseBackoff,
				MaxBackoff:   maxBackoff,
			})
		},
	}

	command.Flags().StringVar(&consumerName, "consumer", "worker-1", "Worker consumer name")
	command.Flags().IntVar(&concurrency, "concurrency", 1, "Number of consumers in this process")
	command.Flags().DurationVar(&baseBackoff, "base-backoff", 500*time.Millisecond, "Base backoff after a failed claim")
	command.Flags().DurationVar(&maxBackoff, "max-backoff", 30*time.Second, "Max backoff after a failed claim")

	return command
}
