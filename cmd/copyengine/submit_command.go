package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"copyengine/internal/api"
)

type waitFlags struct {
	wait     bool
	interval time.Duration
	timeout  time.Duration
}

func (w *waitFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&w.wait, "wait", false, "Poll until the job finishes")
	cmd.Flags().DurationVar(&w.interval, "interval", time.Second, "Polling interval with --wait")
	cmd.Flags().DurationVar(&w.timeout, "timeout", 5*time.Minute, "Give up waiting after this long")
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit work to a running daemon",
	}
	submitCmd.AddCommand(newSubmitTranscriptCommand(ctx))
	submitCmd.AddCommand(newSubmitRewriteCommand(ctx))
	submitCmd.AddCommand(newSubmitProductCommand(ctx))
	return submitCmd
}

func newSubmitTranscriptCommand(ctx *commandContext) *cobra.Command {
	var shareText, requestID string
	var wait waitFlags
	cmd := &cobra.Command{
		Use:   "transcript [share text]",
		Short: "Transcribe the video behind a share link",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				shareText = args[0]
			}
			if strings.TrimSpace(shareText) == "" {
				return fmt.Errorf("share text is required")
			}
			if strings.TrimSpace(requestID) == "" {
				requestID = uuid.NewString()
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			accepted, err := client.CreateTask(cmd.Context(), api.TaskRequest{ShareText: shareText, ClientRequestID: requestID})
			if err != nil {
				return err
			}
			if wait.wait {
				return waitForTask(cmd, ctx, client, accepted.TaskID, wait)
			}
			return printAccepted(cmd, ctx, accepted, accepted.TaskID)
		},
	}
	cmd.Flags().StringVar(&shareText, "share-text", "", "Share text containing the video link")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Idempotency key (defaults to a random UUID)")
	wait.bind(cmd)
	return cmd
}

func newSubmitRewriteCommand(ctx *commandContext) *cobra.Command {
	var source sourceFlags
	var wait waitFlags
	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Generate close rewrites of a script",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := source.read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			accepted, err := client.CreateVariants(cmd.Context(), api.CopyVariantsRequest{SourceText: text, Mode: api.ModeRewrite})
			if err != nil {
				return err
			}
			if wait.wait {
				return waitForJob(cmd, ctx, client, accepted.JobID, wait)
			}
			return printAccepted(cmd, ctx, accepted, accepted.JobID)
		},
	}
	source.bind(cmd)
	wait.bind(cmd)
	return cmd
}

func newSubmitProductCommand(ctx *commandContext) *cobra.Command {
	var source sourceFlags
	var product productFlags
	var wait waitFlags
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Rewrite a script to promote a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := source.read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			info, err := product.build()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			accepted, err := client.CreateProductVariants(cmd.Context(), api.ProductVariantsRequest{
				SourceText:  text,
				Mode:        api.ModeProductAdapt,
				ProductInfo: info,
			})
			if err != nil {
				return err
			}
			if wait.wait {
				return waitForJob(cmd, ctx, client, accepted.JobID, wait)
			}
			return printAccepted(cmd, ctx, accepted, accepted.JobID)
		},
	}
	source.bind(cmd)
	product.bind(cmd)
	wait.bind(cmd)
	return cmd
}

func printAccepted(cmd *cobra.Command, ctx *commandContext, payload any, id string) error {
	if ctx.jsonOutput(cmd) {
		return writeJSON(cmd, payload)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Queued %s\n", id)
	fmt.Fprintf(out, "Check progress with: copyengine job %s --wait\n", id)
	return nil
}
