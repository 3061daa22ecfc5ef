// Command bcr-publish publishes a Bazel registry tree to object storage
// and edits the local tree.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/uhthomas/bazel-central-registry/internal/logging"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logging.FromEnv(os.Stderr).With("run_id", uuid.NewString())

	if err := newRootCommand(logger).ExecuteContext(ctx); err != nil {
		logger.Error("bcr-publish failed", "error", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCommand(logger *slog.Logger) *cobra.Command {
	opts := defaultPublishOptions()

	cmd := &cobra.Command{
		Use:   "bcr-publish",
		Short: "Publish a Bazel registry to a storage bucket",
		Long: `Uploads bazel_registry.json and module_list, then mirrors modules/
to the bucket, deleting remote module files that no longer exist locally.
The run stops at the first failure.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPublish(cmd.Context(), cmd.OutOrStdout(), opts, logger)
		},
	}

	opts.addFlags(cmd.Flags())
	cmd.AddCommand(newAddCommand(logger), newDeleteCommand(logger))
	return cmd
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
