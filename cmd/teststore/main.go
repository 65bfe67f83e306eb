package main

import (
	"context"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/uirecorder/teststore/cmd/teststore/commands"
	"github.com/uirecorder/teststore/pkg/config"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	setupLogging()

	// A second signal falls through to the default handler and kills the
	// process, so a stuck watch loop can still be interrupted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	version, commit, buildDate := buildVersion()
	err := commands.Execute(ctx, version, commit, buildDate)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("Command execution failed")
		os.Exit(1)
	}
}

// buildVersion prefers ldflags values and falls back to the module and VCS
// data embedded by `go install`.
func buildVersion() (version, commit, buildDate string) {
	version, commit, buildDate = Version, Commit, BuildDate

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "unknown" && len(s.Value) >= 12 {
				commit = s.Value[:12]
			}
		case "vcs.time":
			if buildDate == "unknown" {
				buildDate = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" && commit != "unknown" {
				commit += "-dirty"
			}
		}
	}
	return
}

// setupLogging configures the global logger used before the store's own
// telemetry is opened.
func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	level, err := zerolog.ParseLevel(os.Getenv(config.EnvLogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
