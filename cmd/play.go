package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/drgolem/chipplay/internal/app"
	"github.com/drgolem/chipplay/internal/config"
	"github.com/drgolem/chipplay/internal/filesystem"
	"github.com/drgolem/chipplay/internal/output"
	"github.com/drgolem/chipplay/internal/soundengine"
	"github.com/drgolem/chipplay/internal/ui"
	"github.com/drgolem/chipplay/pkg/decoders"
)

var (
	playSettings = config.Default()
	headless     bool
	statusEvery  time.Duration
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play [path]",
	Short: "Browse a directory and play chiptunes",
	Long: `Browse a directory and play chiptunes through PortAudio or oto.

With a directory the explorer opens on it. With a file the explorer opens
on its directory and the file starts playing. When a track ends the next
subtune plays, then the next file of the listing.

Examples:
  # Browse the current directory
  chipplay play

  # Play a SID tune, ROM images in ./data
  chipplay play --data ./data music/Commando.sid

  # Play through oto at 44.1 kHz without the terminal UI
  chipplay play --backend oto --rate 44100 --headless music/

  # End SID tunes after three minutes
  chipplay play --sid-length 3m music/

Keys:
  enter open • backspace up • space play/pause • s stop • n/p next/prev • q quit`,
	Args: cobra.MaximumNArgs(1),
	Run:  runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	flags := playCmd.Flags()
	flags.StringVar(&playSettings.DataPath, "data", playSettings.DataPath, "Directory holding the C64 ROM images (kernal, basic, chargen)")
	flags.StringVarP(&playSettings.Backend, "backend", "b", playSettings.Backend, "Audio output backend: portaudio or oto")
	flags.IntVarP(&playSettings.DeviceIndex, "device", "d", playSettings.DeviceIndex, "PortAudio output device index")
	flags.IntVarP(&playSettings.FramesPerBuffer, "frames", "f", playSettings.FramesPerBuffer, "PortAudio frames per buffer")
	flags.IntVarP(&playSettings.DeviceRate, "rate", "r", playSettings.DeviceRate, "oto device sample rate")
	flags.BoolVar(&playSettings.SkipUnsupported, "skip-unsupported", playSettings.SkipUnsupported, "Skip files that fail to load when advancing")
	flags.BoolVar(&playSettings.SkipSubtunes, "skip-subtunes", playSettings.SkipSubtunes, "Next/previous move between files only")
	flags.BoolVar(&playSettings.AlwaysStartFirstTrack, "first-track", playSettings.AlwaysStartFirstTrack, "Always start at subtune 1")
	flags.DurationVar(&playSettings.SIDSongLength, "sid-length", playSettings.SIDSongLength, "Play length of SID tunes (0 = endless)")
	flags.BoolVar(&headless, "headless", false, "Play without the terminal UI, logging to stderr")
	flags.DurationVar(&statusEvery, "status", 2*time.Second, "Headless status log interval")
}

func runPlay(cmd *cobra.Command, args []string) {
	path := "."
	if len(args) == 1 {
		path = args[0]
	}

	tui := !headless && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	closeLog, err := setupLogging(tui)
	if err != nil {
		slog.Error("Failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := playSettings.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Error("Path not found", "path", path, "error", err)
		os.Exit(1)
	}
	dir, fileName := path, ""
	if !info.IsDir() {
		dir, fileName = filepath.Dir(path), filepath.Base(path)
	}

	slog.Info("Audio configuration",
		"backend", playSettings.Backend,
		"device_index", playSettings.DeviceIndex,
		"frames_per_buffer", playSettings.FramesPerBuffer,
		"device_rate", playSettings.DeviceRate)

	registry := decoders.NewDefault(playSettings.Decoders())
	defer registry.Cleanup()

	backend, err := output.New(playSettings.Output())
	if err != nil {
		slog.Error("Failed to open output backend", "error", err)
		if playSettings.Backend == "portaudio" {
			slog.Error("Hint: Make sure PortAudio is installed on your system, or use --backend oto")
		}
		os.Exit(1)
	}
	defer backend.Close()

	engine := soundengine.New(registry, backend, playSettings.FramesPerBuffer)
	defer engine.Cleanup()

	files, err := filesystem.New(dir)
	if err != nil {
		slog.Error("Failed to open directory", "error", err)
		os.Exit(1)
	}
	defer files.Close()

	a := app.New(engine, files, playSettings)
	if fileName == "" && !tui {
		if names := files.Files(); len(names) > 0 {
			fileName = names[0]
		}
	}
	if fileName != "" {
		a.Open(filesystem.Entry{Name: fileName})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if tui {
		p := tea.NewProgram(ui.NewModel(a, files, engine), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			slog.Error("Terminal UI failed", "error", err)
		}
		slog.Info("Exiting")
		return
	}

	if err := ui.RunHeadless(ctx, a, engine, statusEvery); err != nil {
		slog.Info("Signal received, stopping playback", "error", err)
	} else {
		slog.Info("Playback completed successfully")
	}
	slog.Info("Exiting")
}
