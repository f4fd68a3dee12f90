package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	v1 "github.com/kubev2v/prio-scheduler/api/v1"
	"github.com/kubev2v/prio-scheduler/internal/util"
	"github.com/kubev2v/prio-scheduler/pkg/client"
)

func newJobsCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Submit, inspect and cancel jobs on a running prioschedd",
	}
	flags := cmd.PersistentFlags()
	flags.String("api-url", "http://localhost:8000", "Base url of the prioschedd API")
	flags.String("token", "", "Bearer token (see the token command)")

	cmd.AddCommand(
		newJobsSubmitCommand(v),
		newJobsGetCommand(v),
		newJobsListCommand(v),
		newJobsCancelCommand(v),
		newJobsStatusCommand(v),
	)
	return cmd
}

func newAPIClient(v *viper.Viper, cmd *cobra.Command) (*client.Client, error) {
	if err := setAllConfig(v, cmd.Flags()); err != nil {
		return nil, err
	}
	return client.NewClient(v.GetString("api-url"), v.GetString("token"))
}

func newJobsSubmitCommand(v *viper.Viper) *cobra.Command {
	var (
		req  v1.JobRequest
		wait bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newAPIClient(v, cmd)
			if err != nil {
				return err
			}
			job, err := c.SubmitJob(cmd.Context(), req)
			if err != nil {
				return err
			}
			if wait {
				if job, err = c.WaitForJob(cmd.Context(), job.Id, 50*time.Millisecond); err != nil {
					return err
				}
			}
			printJobs(cmd.OutOrStdout(), []v1.Job{*job})
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Kind, "kind", "", "Computation kind")
	cmd.Flags().StringVar(&req.Priority, "priority", "", "Priority (server default when empty)")
	cmd.Flags().StringVar(&req.Delay, "delay", "", "Admission delay, e.g. 500ms")
	cmd.Flags().StringVar(&req.Input, "input", "", "Computation input")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the job finishes")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newJobsGetCommand(v *viper.Viper) *cobra.Command {
	var events bool
	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(v, cmd)
			if err != nil {
				return err
			}
			job, err := c.GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJobs(cmd.OutOrStdout(), []v1.Job{*job})
			if !events {
				return nil
			}
			evs, err := c.GetJobEvents(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			for _, e := range evs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s attempt %d\n", e.Time.Format(time.RFC3339Nano), e.Kind, e.Attempt)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&events, "events", false, "Also print the dispatch history")
	return cmd
}

func newJobsListCommand(v *viper.Viper) *cobra.Command {
	var (
		params   v1.GetJobsParams
		page     int
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newAPIClient(v, cmd)
			if err != nil {
				return err
			}
			params.Page, params.PageSize = util.Ptr(page), util.Ptr(pageSize)
			resp, err := c.ListJobs(cmd.Context(), params)
			if err != nil {
				return err
			}
			printJobs(cmd.OutOrStdout(), resp.Jobs)
			fmt.Fprintf(cmd.OutOrStdout(), "\npage %d/%d, %d jobs\n", resp.Page, resp.PageCount, resp.Total)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&params.State, "state", nil, "Filter by state")
	cmd.Flags().StringSliceVar(&params.Priority, "priority", nil, "Filter by priority")
	cmd.Flags().StringSliceVar(&params.Kind, "kind", nil, "Filter by kind")
	cmd.Flags().StringSliceVar(&params.Sort, "sort", nil, "Sort fields, prefix with - for descending")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Jobs per page")
	return cmd
}

func newJobsCancelCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(v, cmd)
			if err != nil {
				return err
			}
			job, err := c.CancelJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJobs(cmd.OutOrStdout(), []v1.Job{*job})
			return nil
		},
	}
}

func newJobsStatusCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the scheduler state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newAPIClient(v, cmd)
			if err != nil {
				return err
			}
			st, err := c.GetSchedulerStatus(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func printJobs(out io.Writer, jobs []v1.Job) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tPRIORITY\tSTATE\tATTEMPTS\tPREEMPTIONS\tRESULT")
	for _, j := range jobs {
		result := ""
		switch {
		case j.Result != nil:
			result = *j.Result
		case j.Error != nil:
			result = color.RedString(*j.Error)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			j.Id, j.Kind, j.Priority, stateColor(j.State)(string(j.State)), j.Attempts, j.Preemptions, result)
	}
	_ = tw.Flush()
}

func printStatus(out io.Writer, st *v1.SchedulerStatus) {
	running := "idle"
	if st.Running && st.CurrentJob != nil && st.CurrentPriority != nil {
		running = fmt.Sprintf("%s (%s)", *st.CurrentJob, *st.CurrentPriority)
	}
	fmt.Fprintf(out, "running:  %s\n", running)
	fmt.Fprintf(out, "pending:  %d\n", st.TotalPending)
	for _, p := range []string{"higher", "high", "normal", "low", "below_low"} {
		fmt.Fprintf(out, "  %-10s %d\n", p, st.Pending[p])
	}
	fmt.Fprintf(out, "delayed:  %d\n", st.Delayed)
	fmt.Fprintf(out, "kinds:    %s\n", strings.Join(st.Kinds, ", "))
	if st.Closed {
		fmt.Fprintln(out, color.YellowString("scheduler is closed"))
	}
}

func stateColor(s v1.JobState) func(a ...any) string {
	switch s {
	case v1.JobStateCompleted:
		return color.New(color.FgGreen).SprintFunc()
	case v1.JobStateFailed:
		return color.New(color.FgRed).SprintFunc()
	case v1.JobStateRunning:
		return color.New(color.FgCyan).SprintFunc()
	case v1.JobStateCancelled:
		return color.New(color.Faint).SprintFunc()
	default:
		return fmt.Sprint
	}
}
