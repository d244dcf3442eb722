package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/ragify/internal/orchestrator"
)

var exportFile string

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Extract, embed and index local documents",
	Long: `Run the ingestion pipeline on local files and print a summary table.

Supported types: .txt .pdf .docx .doc .csv

Examples:
  ragify ingest report.pdf
  ragify ingest notes.txt data.csv --export chunks.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&exportFile, "export", "", "Export extracted chunks to JSON file: --export <filename>")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	rt, err := orchestrator.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}
	defer rt.Close()

	results := make([]orchestrator.IngestResult, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		result, err := rt.Ingestor.Ingest(ctx, path, data)
		if err != nil {
			return fmt.Errorf("%s %s: %w", errorStyle.Render("Error:"), path, err)
		}
		results = append(results, *result)
	}

	// Handle export flag
	if exportFile != "" {
		if err := handleExport(results, exportFile); err != nil {
			return err
		}
	}

	return outputTable(results)
}

func handleExport(results []orchestrator.IngestResult, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	if err := orchestrator.ExportResults(results, "json", file); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Exported %d sources to %s", len(results), filename)))
	return nil
}

func outputTable(results []orchestrator.IngestResult) error {
	// Column widths
	const (
		titleWidth = 36
		chunkWidth = 10
		charWidth  = 12
		idWidth    = 38
	)

	cellStyle := lipgloss.NewStyle().Bold(true).Foreground(headerColor).Padding(0, 1)
	headers := []string{
		cellStyle.Width(titleWidth).Render("SOURCE"),
		cellStyle.Width(chunkWidth).Render("CHUNKS"),
		cellStyle.Width(charWidth).Render("CHARS"),
		cellStyle.Width(idWidth).Render("ID"),
	}
	fmt.Println(strings.Join(headers, borderStyle.Render("│")))

	separatorParts := []string{
		strings.Repeat("─", titleWidth),
		strings.Repeat("─", chunkWidth),
		strings.Repeat("─", charWidth),
		strings.Repeat("─", idWidth),
	}
	fmt.Println(borderStyle.Render(strings.Join(separatorParts, "┼")))

	titleStyle := lipgloss.NewStyle().Foreground(titleColor).Padding(0, 1).Width(titleWidth)
	numStyle := lipgloss.NewStyle().Foreground(numberColor).Padding(0, 1).Align(lipgloss.Right)
	idStyle := lipgloss.NewStyle().Foreground(answerColor).Padding(0, 1).Width(idWidth)

	totalChunks := 0
	for _, r := range results {
		chars := 0
		for _, c := range r.Content {
			chars += len([]rune(c))
		}
		totalChunks += len(r.Content)

		cells := []string{
			titleStyle.Render(truncate(r.Title, titleWidth-2)),
			numStyle.Width(chunkWidth).Render(fmt.Sprintf("%d", len(r.Content))),
			numStyle.Width(charWidth).Render(fmt.Sprintf("%d", chars)),
			idStyle.Render(r.SourceID),
		}
		fmt.Println(strings.Join(cells, borderStyle.Render("│")))
	}

	fmt.Println()
	summary := fmt.Sprintf("Total: %d sources, %d chunks indexed", len(results), totalChunks)
	fmt.Println(accentStyle.Render(summary))
	return nil
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
