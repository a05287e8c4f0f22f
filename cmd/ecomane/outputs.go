package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jgoulah/ecomane/internal/config"
	"github.com/jgoulah/ecomane/internal/coordinator"
	"github.com/jgoulah/ecomane/internal/database"
	"github.com/jgoulah/ecomane/internal/publisher"
	"github.com/jgoulah/ecomane/pkg/models"
)

// outputs are the sinks a successful poll is written to
type outputs struct {
	db        *database.DB
	pub       *publisher.Publisher
	keepPolls int
	logger    *zap.Logger
}

// setupOutputs opens the database when store is set and it is not disabled,
// and connects the publisher when publish is set and an output is configured.
func setupOutputs(cfg *config.Config, logger *zap.Logger, store, publish bool) (*outputs, error) {
	out := &outputs{keepPolls: cfg.Database.KeepPolls, logger: logger}

	if store && !cfg.Database.Disabled {
		db, err := openDB(cfg)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		out.db = db
	}

	if publish && (cfg.MQTT.Enabled || cfg.HomeAssistant.Enabled) {
		pub, err := publisher.New(cfg.MQTT, cfg.HomeAssistant, logger)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("creating publisher: %w", err)
		}
		out.pub = pub
	}

	return out, nil
}

// attach registers the outputs as coordinator listeners. Storing runs first so
// a published poll can be marked in the database.
func (o *outputs) attach(coord *coordinator.Coordinator) {
	if o.db != nil {
		coord.OnUpdate(o.store)
	}
	if o.pub != nil {
		coord.OnUpdate(o.publish)
	}
}

func (o *outputs) store(ctx context.Context, poll *models.Poll) {
	if err := o.db.InsertPoll(poll); err != nil {
		o.logger.Error("Storing poll failed", zap.String("poll", poll.ID), zap.Error(err))
		return
	}
	deleted, err := o.db.Prune(o.keepPolls)
	if err != nil {
		o.logger.Warn("Pruning history failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		o.logger.Debug("Pruned history", zap.Int64("polls", deleted))
	}
}

func (o *outputs) publish(ctx context.Context, poll *models.Poll) {
	if err := o.pub.Publish(ctx, poll); err != nil {
		o.logger.Error("Publishing poll failed", zap.String("poll", poll.ID), zap.Error(err))
		return
	}
	if o.db != nil {
		if err := o.db.MarkPublished(poll.ID); err != nil {
			o.logger.Warn("Marking poll as published failed", zap.String("poll", poll.ID), zap.Error(err))
		}
	}
}

// Close releases the database and the MQTT connection
func (o *outputs) Close() {
	if o.pub != nil {
		o.pub.Close()
	}
	if o.db != nil {
		if err := o.db.Close(); err != nil {
			o.logger.Warn("Closing database failed", zap.Error(err))
		}
	}
}
