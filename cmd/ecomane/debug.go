package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgoulah/ecomane/internal/scraper"
	"github.com/jgoulah/ecomane/pkg/models"
)

var (
	debugVisible bool
	debugOutput  string
	debugPage    int
	debugTimeout time.Duration
)

var debugCmd = &cobra.Command{
	Use:   "debug [usage|power]",
	Short: "Render a device page in a browser and show what the scraper finds",
	Long: `Loads a device page in headless Chrome, saves or prints the rendered HTML,
and runs the scraper's parser over it. Useful when a firmware update changes
the page layout.

Pages:
  usage    the "today's usage" page
  power    one power breakdown page (--page N)`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"usage", "power"},
	RunE:      runDebug,
}

func init() {
	debugCmd.Flags().BoolVar(&debugVisible, "visible", false, "Show the browser window while rendering")
	debugCmd.Flags().StringVar(&debugOutput, "output", "", "Save HTML to this file")
	debugCmd.Flags().IntVar(&debugPage, "page", 1, "Power breakdown page to render")
	debugCmd.Flags().DurationVar(&debugTimeout, "timeout", time.Minute, "Browser timeout")
	rootCmd.AddCommand(debugCmd)
}

func runDebug(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := scraper.NewFromConfig(cfg.Device, zap.NewNop())
	if err != nil {
		return fmt.Errorf("creating scraper: %w", err)
	}

	var url string
	switch args[0] {
	case "usage":
		url = client.UsageURL()
	case "power":
		if debugPage < 1 {
			return fmt.Errorf("--page must be at least 1")
		}
		url = client.PowerURL(debugPage)
	default:
		return fmt.Errorf("unknown page: %s (available: usage, power)", args[0])
	}

	fmt.Printf("Rendering %s...\n", url)
	page, err := scraper.RenderPage(cmd.Context(), url, debugVisible, debugTimeout)
	if err != nil {
		return err
	}
	fmt.Printf("Status %d, %s, %d bytes\n", page.StatusCode, page.MimeType, len(page.HTML))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return fmt.Errorf("parsing rendered HTML: %w", err)
	}

	snap := models.Snapshot{}
	switch args[0] {
	case "usage":
		found := scraper.ParseUsage(doc, snap)
		fmt.Printf("\nFound %d of %d usage metrics\n", found, len(models.UsageMetrics()))
		for _, m := range models.UsageMetrics() {
			if v, ok := snap[m.Key]; ok {
				fmt.Printf("  %-8s %-24s %s\n", m.Key, m.Name, v)
			}
		}
	case "power":
		slotPrefix := cfg.Device.SlotPrefix
		start := (debugPage - 1) * scraper.SlotsPerPage
		total, next := scraper.ParsePowerPage(doc, snap, slotPrefix, start)
		fmt.Printf("\nPage %d of %d, %d circuits\n", debugPage, total, next-start)
		for _, c := range snap.Circuits(next)[start:] {
			fmt.Printf("  %-16s %-36s %s W\n", c.Key, c.Name(), c.Power)
		}
	}

	if debugOutput != "" {
		if err := os.WriteFile(debugOutput, []byte(page.HTML), 0644); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
		fmt.Printf("✓ HTML saved to %s\n", debugOutput)
	} else {
		fmt.Println(page.HTML)
	}

	return nil
}
