package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/drgolem/chipplay/internal/ui"
	"github.com/drgolem/chipplay/pkg/decoders"
	"github.com/drgolem/chipplay/pkg/types"
)

// maxInfoTracks bounds the subtune walk for containers that claim absurd
// track counts.
const maxInfoTracks = 256

var (
	infoDataPath string
)

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Print container metadata and the subtune table",
	Long: `Load a file without opening an audio device and print its disk
information and one row per subtune.

Examples:
  chipplay info music/Commando.sid
  chipplay info --data ./roms music/game.nsf`,
	Args: cobra.ExactArgs(1),
	Run:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVar(&infoDataPath, "data", "data", "Directory holding the C64 ROM images")
}

func runInfo(cmd *cobra.Command, args []string) {
	closeLog, err := setupLogging(false)
	if err != nil {
		slog.Error("Failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer closeLog()

	fileName := args[0]
	data, err := os.ReadFile(fileName)
	if err != nil {
		slog.Error("Failed to read file", "path", fileName, "error", err)
		os.Exit(1)
	}

	registry := decoders.NewDefault(decoders.Options{DataPath: infoDataPath})
	defer registry.Cleanup()

	dec, err := registry.ForFile(fileName)
	if err != nil {
		slog.Error("No decoder for file", "path", fileName, "error", err)
		os.Exit(1)
	}
	if err := dec.Play(data, false); err != nil {
		slog.Error("Failed to load file", "path", fileName, "decoder", dec.Name(), "error", err)
		os.Exit(1)
	}
	defer dec.Stop()

	printInfo(os.Stdout, filepath.Base(fileName), dec)
}

func printInfo(w io.Writer, name string, dec types.Decoder) {
	format := dec.GetFormat()
	meta := dec.MetaData()

	fmt.Fprintf(w, "%s (%s, %d Hz, %d ch, %s)\n\n",
		name, dec.Name(), format.SampleRate, format.Channels, format.SampleFormat)

	disk := table.NewWriter()
	disk.SetOutputMirror(w)
	disk.SetStyle(table.StyleLight)
	disk.SetTitle("Disk")
	d := meta.DiskInformation
	disk.AppendRows([]table.Row{
		{"Title", d.Title},
		{"Ripper", d.Ripper},
		{"Converter", d.Converter},
		{"Copyright", d.Copyright},
		{"Tracks", d.TrackCount},
		{"Duration", formatDuration(d.Duration)},
	})
	disk.Render()
	fmt.Fprintln(w)

	tracks := table.NewWriter()
	tracks.SetOutputMirror(w)
	tracks.SetStyle(table.StyleLight)
	tracks.SetAllowedRowLength(termWidth())
	tracks.AppendHeader(table.Row{"#", "Title", "Author", "Copyright", "Duration"})
	for i := 0; i < maxInfoTracks; i++ {
		t := dec.MetaData().TrackInformation
		tracks.AppendRow(table.Row{t.TrackNumber, t.Title, t.Author, t.Copyright, formatDuration(t.Duration)})
		if !dec.NextTrack() {
			break
		}
	}
	tracks.Render()

	if c := meta.TrackInformation.Comment; c != "" {
		fmt.Fprintf(w, "\n%s\n", c)
	}
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "-"
	}
	return ui.FormatSeconds(seconds)
}

func termWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 120
}
