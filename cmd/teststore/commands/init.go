package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "teststore.yaml"

const configTemplate = `# teststore configuration

database:
  path: %s

# Owner used when --owner is not given
owner: %s

importer:
  dir: %s
  debounce: 500ms

telemetry:
  logging:
    level: info
    format: console
  metrics:
    enabled: true
    listen_address: ":9090"
`

func newInitCommand() *cobra.Command {
	var recordingsDir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file and an empty database",
		Long: `Create a configuration file and initialize the database schema.

An existing config file is left untouched. The schema is migrated either way,
so init is safe to run more than once.`,
		Example: `  # Initialize in the current directory
  teststore init

  # Initialize with a custom config and database location
  teststore init --config /etc/teststore/teststore.yaml --db /var/lib/teststore/tests.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if configPath == "" {
				configPath = defaultConfigFile
			}
			path := dbPath
			if path == "" {
				path = filepath.Join(filepath.Dir(configPath), "teststore.db")
			}
			owner := ownerName
			if owner == "" {
				owner = "default"
			}

			log.Info().
				Str("config", configPath).
				Str("database", path).
				Msg("Initializing teststore")

			_, err := os.Stat(configPath)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
					return fmt.Errorf("failed to create config directory: %w", err)
				}
				content := fmt.Sprintf(configTemplate, path, owner, recordingsDir)
				if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
					return fmt.Errorf("failed to write config file: %w", err)
				}
				fmt.Fprintf(out, "✓ Created config file: %s\n", configPath)
			case err != nil:
				return fmt.Errorf("failed to stat config file: %w", err)
			default:
				fmt.Fprintf(out, "✓ Config file already exists: %s\n", configPath)
			}

			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			fmt.Fprintf(out, "✓ Initialized SQLite database: %s\n", rt.cfg.Database.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&recordingsDir, "recordings", "./recordings", "directory the importer reads test files from")

	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			// Open migrates; running again confirms the schema is clean.
			if err := rt.store.Migrate(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Schema is up to date: %s\n", rt.cfg.Database.Path)
			return nil
		},
	}
}
