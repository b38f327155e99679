package cmd

import (
	"billnotify/internal/config"
	"billnotify/internal/domain"
	"billnotify/internal/infra/line"
	"billnotify/internal/infra/pgstore"
	"billnotify/internal/infra/redisq"
	"billnotify/internal/usecase"
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// taskCmd exposes the hooks the task service calls when a task changes.
func taskCmd() *cobra.Command {
	var command = &cobra.Command{
		Use:   "task",
		Short: "Schedule, cancel or announce reminders for a task",
	}

	command.AddCommand(taskScheduleCmd(false))
	command.AddCommand(taskScheduleCmd(true))
	command.AddCommand(taskCancelCmd())
	command.AddCommand(taskStatusCmd())
	command.AddCommand(taskAnnounceCmd())
	return command
}

func withScheduler(ctx context.Context, fn func(s *usecase.ReminderScheduler) error) error {
	cfg := config.Load()
	cli := redisq.New(cfg.Redis, cfg.Queue)
	defer cli.Close()
	if err := cli.Init(ctx); err != nil {
		return err
	}
	return fn(usecase.NewReminderScheduler(cli))
}

func printScheduled(cmd *cobra.Command, out []usecase.Scheduled) {
	for _, sc := range out {
		status := "exists"
		switch {
		case sc.Skipped:
			status = "skipped (past)"
		case sc.Added:
			status = "scheduled"
		case sc.Existing != "":
			status = "exists (" + sc.Existing.String() + ")"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-30s %s %s\n", sc.Kind, sc.JobID, sc.FireAt.Format(time.RFC3339), status)
	}
}

func taskScheduleCmd(reschedule bool) *cobra.Command {
	var (
		taskID string
		due    string
	)
	use, short := "schedule", "Schedule the due-soon and due-today reminders"
	if reschedule {
		use, short = "reschedule", "Replace pending reminders after a due date change"
	}

	var command = &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			dueDate, err := time.Parse(time.RFC3339, due)
			if err != nil {
				return fmt.Errorf("--due must be RFC3339: %w", err)
			}
			return withScheduler(cmd.Context(), func(s *usecase.ReminderScheduler) error {
				var out []usecase.Scheduled
				if reschedule {
					out, err = s.Reschedule(cmd.Context(), taskID, dueDate)
				} else {
					out, err = s.Schedule(cmd.Context(), taskID, dueDate)
				}
				printScheduled(cmd, out)
				return err
			})
		},
	}

	command.Flags().StringVar(&taskID, "id", "", "Task id")
	command.Flags().StringVar(&due, "due", "", "Due date (RFC3339)")
	_ = command.MarkFlagRequired("id")
	_ = command.MarkFlagRequired("due")
	return command
}

func taskCancelCmd() *cobra.Command {
	var taskID string
	var command = &cobra.Command{
		Use:   "cancel",
		Short: "Cancel pending reminders of a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheduler(cmd.Context(), func(s *usecase.ReminderScheduler) error {
				n, err := s.Cancel(cmd.Context(), taskID)
				fmt.Fprintf(cmd.OutOrStdout(), "cancelled %d reminders\n", n)
				return err
			})
		},
	}

	command.Flags().StringVar(&taskID, "id", "", "Task id")
	_ = command.MarkFlagRequired("id")
	return command
}

func taskStatusCmd() *cobra.Command {
	var (
		taskID string
		status string
		due    string
	)
	var command = &cobra.Command{
		Use:   "status",
		Short: "Apply a task status change (PAID cancels, UNPAID schedules)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var dueDate time.Time
			if due != "" {
				var err error
				if dueDate, err = time.Parse(time.RFC3339, due); err != nil {
					return fmt.Errorf("--due must be RFC3339: %w", err)
				}
			}
			st := domain.TaskStatus(status)
			if st == domain.TaskUnpaid && dueDate.IsZero() {
				return fmt.Errorf("--due is required when status is %s", domain.TaskUnpaid)
			}
			return withScheduler(cmd.Context(), func(s *usecase.ReminderScheduler) error {
				return s.OnStatusChange(cmd.Context(), taskID, st, dueDate)
			})
		},
	}

	command.Flags().StringVar(&taskID, "id", "", "Task id")
	command.Flags().StringVar(&status, "status", "", "New status (PAID or UNPAID)")
	command.Flags().StringVar(&due, "due", "", "Due date (RFC3339), needed for UNPAID")
	_ = command.MarkFlagRequired("id")
	_ = command.MarkFlagRequired("status")
	return command
}

func taskAnnounceCmd() *cobra.Command {
	var taskID string
	var command = &cobra.Command{
		Use:   "announce",
		Short: "Send the bill-added message for a task",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			db, err := pgstore.Connect(cfg.Database.DSN)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "announce skipped: %v\n", err)
				return
			}
			defer pgstore.Close(db)
			loc, err := cfg.Line.Location()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "announce skipped: %v\n", err)
				return
			}
			store := pgstore.New(db)
			d := &usecase.Deliverer{
				Tasks:         store,
				Notifications: store,
				Messenger:     line.New(cfg.Line),
				LiffID:        cfg.Line.LiffID,
				Location:      loc,
			}
			res := d.AnnounceBill(cmd.Context(), taskID)
			fmt.Fprintf(cmd.OutOrStdout(), "announce %s: %s %s\n", taskID, res.Outcome, res.Reason)
		},
	}

	command.Flags().StringVar(&taskID, "id", "", "Task id")
	_ = command.MarkFlagRequired("id")
	return command
}
