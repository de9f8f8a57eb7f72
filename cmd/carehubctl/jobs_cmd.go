package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ehr/carehub/pkg/client"
)

func (c *cli) jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Background jobs",
	}
	cmd.AddCommand(c.jobSubmitCmd(), c.jobListCmd(), c.jobGetCmd(), c.jobWaitCmd(), c.jobCancelCmd(), c.jobWatchCmd())
	return cmd
}

func (c *cli) printJob(j *client.Job) error {
	if c.output == outputJSON {
		return c.printJSON(j)
	}
	rows := [][]string{
		{"id", j.ID},
		{"kind", j.Kind},
		{"status", j.Status},
		{"progress", strconv.Itoa(j.Progress) + "%"},
	}
	if j.Message != "" {
		rows = append(rows, []string{"message", j.Message})
	}
	if j.Error != "" {
		rows = append(rows, []string{"error", j.Error})
	}
	if len(j.Result) > 0 {
		rows = append(rows, []string{"result", string(j.Result)})
	}
	return c.printTable([]string{"field", "value"}, rows)
}

func (c *cli) jobSubmitCmd() *cobra.Command {
	var (
		kind, input string
		wait        bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue a job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.JobRequest{Kind: kind}
			if input != "" {
				if !json.Valid([]byte(input)) {
					return fmt.Errorf("--input is not valid JSON")
				}
				req.Input = json.RawMessage(input)
			}
			job, err := c.client.Jobs().Submit(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("submit job: %w", err)
			}
			if wait {
				id := job.ID
				if job, err = c.client.Jobs().Wait(cmd.Context(), id); err != nil {
					return fmt.Errorf("wait for job %s: %w", id, err)
				}
			}
			return c.printJob(job)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "job kind, e.g. agent.deploy")
	cmd.Flags().StringVar(&input, "input", "", "job input as JSON")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the job to finish")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func (c *cli) jobListCmd() *cobra.Command {
	var (
		kind, status string
		page, limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := client.Filters{}
			if kind != "" {
				filters["kind"] = kind
			}
			if status != "" {
				filters["status"] = status
			}
			res, err := c.client.Jobs().List(cmd.Context(), filters, client.Page{Number: page, Limit: limit})
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}
			if c.output == outputJSON {
				return c.printJSON(res)
			}
			rows := make([][]string, 0, len(res.Data))
			for _, j := range res.Data {
				rows = append(rows, []string{j.ID, j.Kind, j.Status, strconv.Itoa(j.Progress) + "%", j.CreatedAt.Format(time.RFC3339)})
			}
			if err := c.printTable([]string{"id", "kind", "status", "progress", "created_at"}, rows); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%d of %d (page %d/%d)\n", len(res.Data), res.Total, res.Page, res.TotalPages)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only jobs of this kind")
	cmd.Flags().StringVar(&status, "status", "", "only jobs in this status")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (server default when 0)")
	return cmd
}

func (c *cli) jobGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := c.client.Jobs().Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get job %s: %w", args[0], err)
			}
			return c.printJob(job)
		},
	}
}

func (c *cli) jobWaitCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "wait <id>",
		Short: "Poll until a job finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			job, err := c.client.Jobs().Wait(ctx, args[0])
			if err != nil {
				return fmt.Errorf("wait for job %s: %w", args[0], err)
			}
			if err := c.printJob(job); err != nil {
				return err
			}
			if job.Status != client.JobSucceeded {
				return fmt.Errorf("job %s %s", job.ID, job.Status)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits forever)")
	return cmd
}

func (c *cli) jobCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := c.client.Jobs().Cancel(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("cancel job %s: %w", args[0], err)
			}
			return c.printJob(job)
		},
	}
}

func (c *cli) jobWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <id>",
		Short: "Stream a job's progress events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := c.client.Jobs().Subscribe(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("watch job %s: %w", args[0], err)
			}
			for evt := range events {
				if c.output == outputJSON {
					if err := c.printJSON(evt.Job); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(c.out, "%s  %-14s %-10s %3d%%  %s\n",
					evt.Timestamp.Format(time.RFC3339), evt.Type, evt.Job.Status, evt.Job.Progress, evt.Job.Message)
			}
			return nil
		},
	}
}
