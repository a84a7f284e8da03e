package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"copyengine/internal/api"
	"copyengine/internal/copygen"
	"copyengine/internal/jobs"
	"copyengine/internal/transcript"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	var wait waitFlags
	cmd := &cobra.Command{
		Use:   "job <id>",
		Short: "Show a copy job or transcript task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			id := args[0]
			view, err := client.GetJob(cmd.Context(), id)
			if isNotFound(err) {
				// Transcript tasks live under their own route.
				if wait.wait {
					return waitForTask(cmd, ctx, client, id, wait)
				}
				task, taskErr := client.GetTask(cmd.Context(), id)
				if taskErr != nil {
					return taskErr
				}
				return printTask(cmd, ctx, task)
			}
			if err != nil {
				return err
			}
			if wait.wait && !terminal(view.Status) {
				return waitForJob(cmd, ctx, client, id, wait)
			}
			return printJob(cmd, ctx, view)
		},
	}
	wait.bind(cmd)
	return cmd
}

func isNotFound(err error) bool {
	var apiErr *api.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func terminal(status jobs.Status) bool {
	return status == jobs.StatusSucceeded || status == jobs.StatusFailed
}

func waitForJob(cmd *cobra.Command, ctx *commandContext, client *api.Client, jobID string, wait waitFlags) error {
	view, err := poll(cmd.Context(), wait, func(c context.Context) (copygen.JobView, jobs.Status, error) {
		v, err := client.GetJob(c, jobID)
		return v, v.Status, err
	})
	if err != nil {
		return fmt.Errorf("wait for job %s: %w", jobID, err)
	}
	if err := printJob(cmd, ctx, view); err != nil {
		return err
	}
	if view.Status == jobs.StatusFailed {
		return fmt.Errorf("job %s failed: %s", jobID, view.ErrorCode)
	}
	return nil
}

func waitForTask(cmd *cobra.Command, ctx *commandContext, client *api.Client, taskID string, wait waitFlags) error {
	view, err := poll(cmd.Context(), wait, func(c context.Context) (transcript.TaskView, jobs.Status, error) {
		v, err := client.GetTask(c, taskID)
		return v, v.Status, err
	})
	if err != nil {
		return fmt.Errorf("wait for task %s: %w", taskID, err)
	}
	if err := printTask(cmd, ctx, view); err != nil {
		return err
	}
	if view.Status == jobs.StatusFailed {
		return fmt.Errorf("task %s failed: %s", taskID, view.ErrorCode)
	}
	return nil
}

// poll fetches until the status is terminal or the wait budget runs out.
func poll[T any](ctx context.Context, wait waitFlags, fetch func(context.Context) (T, jobs.Status, error)) (T, error) {
	interval := wait.interval
	if interval <= 0 {
		interval = time.Second
	}
	if wait.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait.timeout)
		defer cancel()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		value, status, err := fetch(ctx)
		if err != nil {
			return value, err
		}
		if terminal(status) {
			return value, nil
		}
		select {
		case <-ctx.Done():
			return value, fmt.Errorf("still %s: %w", status, ctx.Err())
		case <-ticker.C:
		}
	}
}

func printJob(cmd *cobra.Command, ctx *commandContext, view copygen.JobView) error {
	if ctx.jsonOutput(cmd) {
		return writeJSON(cmd, view)
	}
	renderJobView(cmd.OutOrStdout(), view)
	return nil
}

func printTask(cmd *cobra.Command, ctx *commandContext, view transcript.TaskView) error {
	if ctx.jsonOutput(cmd) {
		return writeJSON(cmd, view)
	}
	renderTaskView(cmd.OutOrStdout(), view)
	return nil
}
