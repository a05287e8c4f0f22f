package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jgoulah/ecomane/internal/database"
)

var (
	listLimit int
	listKey   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored polls",
	Long: `Displays the most recent polls stored in the database.

With --key, shows the stored history of a single snapshot key instead,
e.g. --key num_L1 or --key em_circuit_03.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Number of rows to show")
	listCmd.Flags().StringVar(&listKey, "key", "", "Show the history of one snapshot key")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if listKey != "" {
		return listHistory(db, listKey)
	}

	polls, err := db.ListPolls(listLimit)
	if err != nil {
		return fmt.Errorf("listing polls: %w", err)
	}
	if len(polls) == 0 {
		fmt.Println("No polls stored")
		return nil
	}

	fmt.Println("------------------------------------------------------------------------------")
	fmt.Printf("%-36s  %-16s  %8s  %8s  %9s\n", "Poll", "When", "Circuits", "Readings", "Published")
	fmt.Println("------------------------------------------------------------------------------")
	for _, p := range polls {
		published := "no"
		if p.Published {
			published = "yes"
		}
		fmt.Printf("%-36s  %-16s  %8d  %8d  %9s\n", p.ID, humanize.Time(p.FinishedAt), p.CircuitCount, p.Readings, published)
	}
	fmt.Println("------------------------------------------------------------------------------")
	fmt.Printf("%s polls shown\n", humanize.Comma(int64(len(polls))))

	return nil
}

func listHistory(db *database.DB, key string) error {
	readings, err := db.History(key, listLimit)
	if err != nil {
		return fmt.Errorf("reading history of %s: %w", key, err)
	}
	if len(readings) == 0 {
		fmt.Printf("No readings stored for %s\n", key)
		return nil
	}

	fmt.Printf("\n%s history:\n", key)
	fmt.Println("----------------------------------------------------")
	fmt.Printf("%-20s  %-16s  %12s\n", "Time", "When", "Value")
	fmt.Println("----------------------------------------------------")
	for _, r := range readings {
		fmt.Printf("%-20s  %-16s  %12s\n", r.At.Local().Format("2006-01-02 15:04:05"), humanize.Time(r.At), r.Value)
	}
	return nil
}
