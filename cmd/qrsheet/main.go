// Package main provides the qrsheet CLI: encode a single URL, or turn a
// spreadsheet of URLs into a ZIP of QR code PNGs.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qrsheet/qrsheet/internal/archive"
	"github.com/qrsheet/qrsheet/internal/batch"
	"github.com/qrsheet/qrsheet/internal/classify"
	"github.com/qrsheet/qrsheet/internal/logging"
	"github.com/qrsheet/qrsheet/internal/naming"
	"github.com/qrsheet/qrsheet/internal/qr"
	"github.com/qrsheet/qrsheet/internal/tabular"
)

var (
	moduleSize int
	border     int
	outputSize int
	level      string

	outputPath string

	sheetName     string
	urlColumn     string
	nameColumns   []string
	separator     string
	collapseEmpty bool
	debug         bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "qrsheet",
		Short: "Generate QR code PNGs from URLs and spreadsheets",
	}
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		lvl := "info"
		if debug {
			lvl = "debug"
		}
		logging.Setup(lvl, "text")
	}

	encodeCmd := &cobra.Command{
		Use:   "encode [url]",
		Short: "Encode a single URL as a QR code PNG",
		Args:  cobra.ExactArgs(1),
		RunE:  runEncode,
	}
	addQRFlags(encodeCmd)
	encodeCmd.Flags().StringVarP(&outputPath, "output", "o", "qr.png", "Output PNG path")

	batchCmd := &cobra.Command{
		Use:   "batch [input.xlsx|input.csv]",
		Short: "Generate a ZIP of QR codes from a spreadsheet of URLs",
		Long: `batch reads a spreadsheet, encodes every URL in the chosen column,
names each PNG from the chosen columns, and writes a ZIP archive.
When --url-column is omitted, the column whose values look most like
URLs is picked automatically.`,
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}
	addQRFlags(batchCmd)
	batchCmd.Flags().StringVarP(&outputPath, "output", "o", "qr_codes.zip", "Output ZIP path")
	batchCmd.Flags().StringVar(&sheetName, "sheet", "", "Sheet to process (default: first sheet)")
	batchCmd.Flags().StringVar(&urlColumn, "url-column", "", "Column holding the URLs (default: auto-detect)")
	batchCmd.Flags().StringSliceVar(&nameColumns, "name-columns", nil, "Columns joined into each filename (required)")
	batchCmd.Flags().StringVar(&separator, "separator", "_", "Separator between filename parts")
	batchCmd.Flags().BoolVar(&collapseEmpty, "collapse-empty", false, "Drop empty filename parts instead of keeping their separator slots")
	batchCmd.MarkFlagRequired("name-columns")

	rootCmd.AddCommand(encodeCmd, batchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addQRFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&moduleSize, "module-size", 10, "Pixels per QR module")
	cmd.Flags().IntVar(&border, "border", 4, "Quiet zone width in modules")
	cmd.Flags().IntVar(&outputSize, "size", 0, "Rescale output to this many pixels square (0: native size)")
	cmd.Flags().StringVar(&level, "level", "L", "Error correction level: L, M, Q, H")
}

func qrSpecFromFlags() qr.Spec {
	return qr.Spec{
		ModuleSize:      moduleSize,
		Border:          border,
		OutputSize:      outputSize,
		ErrorCorrection: qr.Level(strings.ToUpper(level)),
	}
}

func runEncode(cmd *cobra.Command, args []string) error {
	url := strings.TrimSpace(args[0])
	if url == "" {
		return fmt.Errorf("url is empty")
	}

	png, err := qr.Encode(classify.EnsureScheme(url), qrSpecFromFlags())
	if err != nil {
		return fmt.Errorf("encoding failed: %w", err)
	}

	if err := os.WriteFile(outputPath, png, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Printf("wrote %s (%d bytes)\n", outputPath, len(png))
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", inputPath)
	}

	tables, err := tabular.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}

	table, err := pickSheet(tables, sheetName)
	if err != nil {
		return err
	}

	col := urlColumn
	if col == "" {
		col = classify.Suggest(table)
		if col == "" {
			return fmt.Errorf("no column in sheet %q looks like URLs; pass --url-column", table.Sheet)
		}
		fmt.Printf("using URL column %q (auto-detected)\n", col)
	}

	nameSpec := naming.Spec{
		Columns:       nameColumns,
		Separator:     separator,
		CollapseEmpty: collapseEmpty,
	}

	pipeline := batch.New(batch.WithDebug(debug))
	outcome, err := pipeline.Run(cmd.Context(), table, col, nameSpec, qrSpecFromFlags())
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	arch, err := archive.Assemble(outcome)
	if err != nil {
		return fmt.Errorf("assembling archive: %w", err)
	}

	if err := os.WriteFile(outputPath, arch.Data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Printf("wrote %s: %d codes, %d rows skipped\n", outputPath, arch.Entries, arch.Excluded)
	for _, f := range outcome.Failures() {
		fmt.Printf("  row %d skipped: %s\n", f.Row+1, f.Reason)
	}
	return nil
}

func pickSheet(tables []*tabular.Table, name string) (*tabular.Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("input has no sheets")
	}
	if name == "" {
		return tables[0], nil
	}
	for _, t := range tables {
		if t.Sheet == name {
			return t, nil
		}
	}
	available := make([]string, 0, len(tables))
	for _, t := range tables {
		available = append(available, t.Sheet)
	}
	return nil, fmt.Errorf("sheet %q not found (available: %s)", name, strings.Join(available, ", "))
}
