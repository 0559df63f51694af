// Package cmd implements the command-line surface, following the
// PersistentPreRunE + persistent-flags idiom of cli/cmd/root.go in the
// teacher.
package cmd

import (
	"context"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inspector-tui/inspector-tui/internal/config"
)

var (
	appDir   string
	deviceID string
	watchDir string
	verbose  bool
)

// Version is the build version, overridden at link time with
// -ldflags "-X github.com/inspector-tui/inspector-tui/cmd.Version=...",
// the teacher's convention for pkg/version.Version.
var Version = "dev"

// RootCmd is the top-level command: there are no subcommands, matching a
// single-purpose attached tool rather than linkerd's multi-verb CLI.
var RootCmd = &cobra.Command{
	Use:     "inspector-tui",
	Short:   "A terminal inspector and debugger for a running Flutter app",
	Version: Version,
	Long: `inspector-tui attaches to a running Flutter app's VM-service
WebSocket endpoint and presents a live, navigable widget tree, property
details, a log pane, and a source-level debugger in the terminal.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.InfoLevel)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &config.Config{
			AppDir:   appDir,
			DeviceID: deviceID,
			WatchDir: watchDir,
			Verbose:  verbose,
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		go func() {
			<-sigCh
			cancel()
		}()

		return RunApp(ctx, cfg)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&appDir, "app-dir", ".", "Root directory of the Flutter app to attach to")
	RootCmd.PersistentFlags().StringVar(&deviceID, "device-id", "", "Target device id, forwarded to the attach tool's -d flag")
	RootCmd.PersistentFlags().StringVar(&watchDir, "watch-dir", "", "Directory to watch for source changes (defaults to --app-dir)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug-level logging")
}

// Execute runs the root command; main()'s sole responsibility.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.WithError(err).Error("inspector-tui: fatal")
		os.Exit(1)
	}
}
