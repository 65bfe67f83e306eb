package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/uirecorder/teststore/pkg/importer"
	"github.com/uirecorder/teststore/pkg/telemetry"
)

func newImportCommand() *cobra.Command {
	var (
		watch   bool
		metrics bool
	)

	cmd := &cobra.Command{
		Use:   "import [dir]",
		Short: "Import recorded test files from a directory",
		Long: `Import recorded test JSON files into the store.

Files directly in the directory belong to the configured owner. Files in a
subdirectory belong to the owner named after that subdirectory. Each file
holds one test or an array of tests.

With --watch the directory keeps being watched and changed files are
re-imported until the command is interrupted.`,
		Example: `  # Import once
  teststore import ./recordings

  # Keep importing and expose Prometheus metrics
  teststore import ./recordings --watch --metrics`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()

			root := rt.cfg.Importer.Dir
			if len(args) == 1 {
				root = args[0]
			}
			if root == "" {
				return fmt.Errorf("no import directory given and importer.dir is not set")
			}
			watch = watch || rt.cfg.Importer.Watch

			im := importer.New(rt.store, importer.Options{
				DefaultOwner: rt.cfg.Owner,
				Debounce:     rt.cfg.Importer.Debounce,
				Telemetry:    rt.tel,
			})

			res, err := im.ImportDir(ctx, root)
			if err != nil {
				return err
			}
			if err := printResult(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !watch {
				return res.Err()
			}

			if err := watchDir(ctx, cmd.OutOrStdout(), im, root, metrics); err != nil {
				return err
			}
			defer im.StopWatching()

			log.Info().Str("root", root).Msg("Watching for changes, press Ctrl+C to stop")
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep watching the directory for changes")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "serve Prometheus metrics while watching")

	return cmd
}

// watchDir starts watching root with the telemetry carried by ctx. It
// optionally serves metrics and logs every stored test.
func watchDir(ctx context.Context, w io.Writer, im *importer.Importer, root string, serveMetrics bool) error {
	tel := telemetry.FromTelemetryContext(ctx)
	if tel == nil {
		tel = telemetry.NewNop()
	}

	if serveMetrics {
		errCh := tel.Metrics.StartMetricsServer(ctx)
		go func() {
			for err := range errCh {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		log.Info().Str("address", tel.Config.Metrics.ListenAddress).Msg("Serving metrics")
	}

	tel.Events.Subscribe(func(e telemetry.Event) {
		log.Info().Str("event", e.Type).Str("owner", e.Owner).Str("test", e.TestName).Msg(e.Message)
	}, func(e telemetry.Event) bool {
		return e.Type == telemetry.EventTypeTestWritten
	})

	return im.Watch(ctx, root, func(res importer.Result) {
		if err := printResult(w, res); err != nil {
			log.Error().Err(err).Msg("Failed to print import result")
		}
	})
}

func printResult(w io.Writer, res importer.Result) error {
	if jsonOutput {
		failures := make([]map[string]string, 0, len(res.Failures))
		for _, f := range res.Failures {
			failures = append(failures, map[string]string{"path": f.Path, "error": f.Err.Error()})
		}
		return printJSON(w, map[string]any{
			"root":     res.Root,
			"files":    res.Files,
			"tests":    res.Tests,
			"skipped":  res.Skipped,
			"failures": failures,
		})
	}

	fmt.Fprintf(w, "✓ Imported %d tests from %d files in %s", res.Tests, res.Files, res.Root)
	if res.Skipped > 0 {
		fmt.Fprintf(w, " (%d unchanged)", res.Skipped)
	}
	fmt.Fprintln(w)
	for _, f := range res.Failures {
		fmt.Fprintf(w, "✗ %s: %v\n", f.Path, f.Err)
	}
	return nil
}
