package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

const (
	version = "1.0.0"
)

var (
	verbose bool
	logFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chipplay",
	Short: "Chiptune player for console, home-computer and tracker music",
	Long: `chipplay - A chiptune player built on emulated sound chips.

Supported Formats:
  gme:     .nsf (NES), .vgm/.vgz (SN76489, AY-3-8910)
  sidplay: .sid/.psid/.rsid/.mus (Commodore 64, needs kernal/basic/chargen ROMs)
  dumb:    .mod (ProTracker)
  sc68:    .ym (Atari ST register dumps, LHA packed or plain)

Commands:
  - play: Browse a directory and play files with a terminal UI
  - info: Print container metadata and the subtune table
  - decoders: List registered decoders and their setup status`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file (the terminal UI discards them otherwise)")
}

// setupLogging installs the default slog logger. With quiet set, logs go to
// the log file if one was given and are discarded otherwise. The returned
// function closes the log file.
func setupLogging(quiet bool) (func(), error) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	case quiet:
		w = io.Discard
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return closeFn, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
