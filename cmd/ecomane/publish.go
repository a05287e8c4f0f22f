package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/ecomane/internal/database"
	"github.com/jgoulah/ecomane/internal/publisher"
)

var (
	publishID          string
	publishForce       bool
	publishUnpublished bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish stored readings to Home Assistant",
	Long: `Reads a stored poll from the database and publishes it to MQTT (with Home
Assistant discovery) and/or the Home Assistant REST API.

By default the latest poll is published unless it already was. Use --id to
pick a poll, --force to publish it again, or --unpublished to send every
poll that has not been published yet, oldest first.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishID, "id", "", "Poll id to publish (default: latest)")
	publishCmd.Flags().BoolVar(&publishForce, "force", false, "Publish even if already published")
	publishCmd.Flags().BoolVar(&publishUnpublished, "unpublished", false, "Publish every unpublished poll")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cfg.MQTT.Enabled && !cfg.HomeAssistant.Enabled {
		return fmt.Errorf("neither mqtt nor home_assistant is enabled in config")
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pub, err := publisher.New(cfg.MQTT, cfg.HomeAssistant, logger)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var records []*database.PollRecord
	switch {
	case publishUnpublished:
		records, err = loadUnpublished(db)
		if err != nil {
			return err
		}
	case publishID != "":
		rec, err := db.GetPoll(publishID)
		if err != nil {
			return fmt.Errorf("loading poll %s: %w", publishID, err)
		}
		if rec == nil {
			return fmt.Errorf("poll %s not found", publishID)
		}
		records = append(records, rec)
	default:
		rec, err := db.LatestPoll()
		if err != nil {
			return fmt.Errorf("loading latest poll: %w", err)
		}
		if rec == nil {
			fmt.Println("No polls stored. Run 'ecomane poll' first")
			return nil
		}
		records = append(records, rec)
	}

	published := 0
	for i, rec := range records {
		if rec.Published && !publishForce {
			fmt.Printf("[%d/%d] %s already published (use --force to send again)\n", i+1, len(records), rec.ID)
			continue
		}

		fmt.Printf("[%d/%d] Publishing %s (%d readings, %d circuits)... ", i+1, len(records), rec.ID, len(rec.Snapshot), rec.CircuitCount)
		if err := pub.Publish(cmd.Context(), &rec.Poll); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			continue
		}

		if err := db.MarkPublished(rec.ID); err != nil {
			fmt.Printf("✓ (warning: failed to mark as published: %v)\n", err)
		} else {
			fmt.Printf("✓\n")
		}
		published++
	}

	fmt.Printf("\nPublished %d/%d polls\n", published, len(records))
	return nil
}

type pollStore interface {
	ListUnpublished() ([]database.PollRecord, error)
	GetPoll(id string) (*database.PollRecord, error)
}

// loadUnpublished loads every unpublished poll with its readings, oldest first
func loadUnpublished(store pollStore) ([]*database.PollRecord, error) {
	pending, err := store.ListUnpublished()
	if err != nil {
		return nil, fmt.Errorf("listing unpublished polls: %w", err)
	}

	records := make([]*database.PollRecord, 0, len(pending))
	for _, p := range pending {
		rec, err := store.GetPoll(p.ID)
		if err != nil {
			return nil, fmt.Errorf("loading poll %s: %w", p.ID, err)
		}
		if rec == nil {
			// pruned since it was listed
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
