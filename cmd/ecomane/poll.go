package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/ecomane/internal/coordinator"
	"github.com/jgoulah/ecomane/internal/scraper"
)

var (
	pollJSON    bool
	pollNoStore bool
	pollPublish bool
	pollWait    bool
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one polling cycle",
	Long: `Fetches the usage page and every power breakdown page once, prints the
result and stores it in the local SQLite database.

With --wait the first poll is retried every polling.retry_interval until the
device answers.`,
	Args: cobra.NoArgs,
	RunE: runPoll,
}

func init() {
	pollCmd.Flags().BoolVar(&pollJSON, "json", false, "Print the snapshot as JSON")
	pollCmd.Flags().BoolVar(&pollNoStore, "no-store", false, "Do not write the result to the database")
	pollCmd.Flags().BoolVar(&pollPublish, "publish", false, "Publish the result to MQTT / Home Assistant")
	pollCmd.Flags().BoolVar(&pollWait, "wait", false, "Retry until the device answers")
	rootCmd.AddCommand(pollCmd)
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client, err := scraper.NewFromConfig(cfg.Device, logger)
	if err != nil {
		return fmt.Errorf("creating scraper: %w", err)
	}

	coord := coordinator.New(client, cfg.Polling.RetryInterval, logger)

	out, err := setupOutputs(cfg, logger, !pollNoStore, pollPublish)
	if err != nil {
		return err
	}
	defer out.Close()
	out.attach(coord)

	ctx := cmd.Context()
	if pollWait {
		err = coord.FirstRefresh(ctx)
	} else {
		err = coord.Refresh(ctx)
	}
	if err != nil {
		return fmt.Errorf("polling %s: %w", cfg.Device.BaseURL(), err)
	}

	poll := coord.Last()
	if pollJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(poll)
	}

	fmt.Printf("=== Poll %s at %s ===\n", poll.ID, poll.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("\nToday's usage:\n")
	fmt.Println("----------------------------------------------------")
	for _, m := range coord.UsageMetrics() {
		value, ok := poll.Snapshot[m.Key]
		if !ok {
			value = "-"
		}
		fmt.Printf("%-28s %12s %s\n", m.Name, value, m.Unit)
	}

	fmt.Printf("\nCircuits (%d):\n", poll.CircuitCount)
	fmt.Println("----------------------------------------------------")
	for _, c := range poll.Circuits() {
		fmt.Printf("%2d  %-36s %8s W\n", c.Index, c.EntityName(), c.Power)
	}
	fmt.Printf("\nTook %s\n", poll.FinishedAt.Sub(poll.StartedAt).Round(time.Millisecond))

	return nil
}
