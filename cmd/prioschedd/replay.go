package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kubev2v/prio-scheduler/internal/services"
	"github.com/kubev2v/prio-scheduler/pkg/scheduler"
)

func newReplayCommand(v *viper.Viper) *cobra.Command {
	var (
		file    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a YAML workload against an in-process scheduler and print its timeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := setAllConfig(v, cmd.Flags()); err != nil {
				return err
			}
			logger, err := newLogger(v.GetString("log-format"), v.GetString("log-level"))
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			w, err := services.LoadWorkload(file)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			tl, err := services.NewReplayer(services.NewBuiltinRegistry()).Run(ctx, w)
			if err != nil {
				return err
			}
			printTimeline(cmd.OutOrStdout(), tl)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Workload file")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the replay after this long (0 waits forever)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printTimeline(out io.Writer, tl *services.Timeline) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(out, "%s %s (%s)\n\n", bold("workload"), tl.Workload, tl.Elapsed.Round(time.Millisecond))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tEVENT\tSTEP\tPRIORITY\tATTEMPT\tDETAIL")
	for _, e := range tl.Events {
		detail := ""
		if e.Kind == scheduler.EventFinished {
			detail = fmt.Sprintf("%s after %s", outcomeColor(e.Outcome)(e.Outcome.String()), e.Duration.Round(time.Millisecond))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.Offset.Round(time.Millisecond), kindColor(e.Kind)(e.Kind.String()), e.Step, e.Priority, e.Attempt, detail)
	}
	_ = tw.Flush()

	fmt.Fprintf(out, "\n%s\n", bold("results"))
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tPRIORITY\tATTEMPTS\tRESULT")
	for _, r := range tl.Results {
		result := color.GreenString(r.Result)
		if r.Err != nil {
			result = color.RedString(r.Err.Error())
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Step, r.Priority, r.Attempts, result)
	}
	_ = tw.Flush()
}

func kindColor(k scheduler.EventKind) func(a ...any) string {
	switch k {
	case scheduler.EventDispatched:
		return color.New(color.FgCyan).SprintFunc()
	case scheduler.EventPreemptSignal:
		return color.New(color.FgYellow).SprintFunc()
	case scheduler.EventDropped:
		return color.New(color.FgMagenta).SprintFunc()
	default:
		return fmt.Sprint
	}
}

func outcomeColor(o scheduler.Outcome) func(a ...any) string {
	switch o {
	case scheduler.OutcomeCompleted:
		return color.New(color.FgGreen).SprintFunc()
	case scheduler.OutcomeFailed:
		return color.New(color.FgRed).SprintFunc()
	case scheduler.OutcomePreempted:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.Faint).SprintFunc()
	}
}
