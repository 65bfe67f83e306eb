package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/uirecorder/teststore/pkg/config"
	"github.com/uirecorder/teststore/pkg/stores"
	"github.com/uirecorder/teststore/pkg/telemetry"
)

// runtime is the configuration, telemetry and open store shared by commands.
type runtime struct {
	cfg   *config.Config
	tel   *telemetry.Telemetry
	store *stores.SQLiteStore
}

// loadConfig loads the config file and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if ownerName != "" {
		cfg.Owner = ownerName
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openRuntime loads configuration and opens a migrated store. The
// telemetry is attached to the command context, and the global command
// logger is switched to the configured logging output.
func openRuntime(cmd *cobra.Command) (*runtime, error) {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	store, err := stores.Open(ctx, cfg.StoreConfig(tel))
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	cmd.SetContext(tel.WithContext(ctx))
	log.Logger = tel.Logger.Zerolog().With().Str("component", "cli").Logger()

	return &runtime{cfg: cfg, tel: tel, store: store}, nil
}

func (r *runtime) Close() error {
	return errors.Join(
		r.store.Close(),
		r.tel.Shutdown(context.Background()),
	)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
