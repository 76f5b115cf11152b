package cmd

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/drgolem/chipplay/pkg/decoders"
)

var (
	decodersDataPath string
)

var decodersCmd = &cobra.Command{
	Use:   "decoders",
	Short: "List registered decoders in lookup order",
	Long: `List the decoders in the order they are tried for a file extension,
with the extensions each claims and whether setup succeeded. The SID decoder
is disabled when the ROM images are missing from the data directory.`,
	Args: cobra.NoArgs,
	Run:  runDecoders,
}

func init() {
	rootCmd.AddCommand(decodersCmd)
	decodersCmd.Flags().StringVar(&decodersDataPath, "data", "data", "Directory holding the C64 ROM images")
}

func runDecoders(cmd *cobra.Command, args []string) {
	closeLog, err := setupLogging(!verbose)
	if err != nil {
		slog.Error("Failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer closeLog()

	registry := decoders.NewDefault(decoders.Options{DataPath: decodersDataPath})
	defer registry.Cleanup()

	printDecoders(os.Stdout, registry.Entries())
}

func printDecoders(w io.Writer, entries []decoders.Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Decoder", "Extensions", "Status"})
	for i, e := range entries {
		status := text.FgGreen.Sprint("ready")
		if e.Err != nil {
			status = text.FgHiRed.Sprint(e.Err.Error())
		}
		t.AppendRow(table.Row{i + 1, e.Decoder.Name(), strings.Join(e.Decoder.Extensions(), " "), status})
	}
	t.Render()
}
