package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/ragify/internal/catalog"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List ingested sources from the catalog",
	Long: `List every recorded ingestion, newest first.

The catalog is only kept when catalog.path (or RAGIFY_CATALOG) is set.

Examples:
  RAGIFY_CATALOG=data/catalog.db ragify sources`,
	Args: cobra.NoArgs,
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Catalog.Path == "" {
		return fmt.Errorf("%s catalog disabled (set catalog.path or RAGIFY_CATALOG)", errorStyle.Render("Error:"))
	}

	cat, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer cat.Close()

	sources, err := cat.List(context.Background())
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Println("No sources recorded")
		return nil
	}

	const (
		kindWidth  = 8
		titleWidth = 40
		chunkWidth = 10
		dateWidth  = 20
	)

	cellStyle := lipgloss.NewStyle().Bold(true).Foreground(headerColor).Padding(0, 1)
	headers := []string{
		cellStyle.Width(kindWidth).Render("KIND"),
		cellStyle.Width(titleWidth).Render("TITLE"),
		cellStyle.Width(chunkWidth).Render("CHUNKS"),
		cellStyle.Width(dateWidth).Render("ADDED"),
	}
	fmt.Println(strings.Join(headers, borderStyle.Render("│")))
	fmt.Println(borderStyle.Render(strings.Join([]string{
		strings.Repeat("─", kindWidth),
		strings.Repeat("─", titleWidth),
		strings.Repeat("─", chunkWidth),
		strings.Repeat("─", dateWidth),
	}, "┼")))

	kindStyle := lipgloss.NewStyle().Foreground(accentColor).Padding(0, 1).Width(kindWidth)
	titleStyle := lipgloss.NewStyle().Foreground(titleColor).Padding(0, 1).Width(titleWidth)
	numStyle := lipgloss.NewStyle().Foreground(numberColor).Padding(0, 1).Width(chunkWidth).Align(lipgloss.Right)
	dateStyle := lipgloss.NewStyle().Foreground(answerColor).Padding(0, 1).Width(dateWidth)

	for _, s := range sources {
		cells := []string{
			kindStyle.Render(s.Kind),
			titleStyle.Render(truncate(s.Title, titleWidth-2)),
			numStyle.Render(fmt.Sprintf("%d", s.ChunkCount)),
			dateStyle.Render(s.CreatedAt.Local().Format("Jan 02 2006, 15:04")),
		}
		fmt.Println(strings.Join(cells, borderStyle.Render("│")))
	}

	fmt.Println()
	fmt.Println(mutedStyle.Render(fmt.Sprintf("Total: %d sources", len(sources))))
	return nil
}
