package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jgoulah/ecomane/pkg/models"
)

// HAState is the body of a Home Assistant POST /api/states/<entity_id>
type HAState struct {
	State      string            `json:"state"`
	Attributes map[string]string `json:"attributes"`
}

// State builds the HA state payload for e
func State(e Entity, value string) HAState {
	attrs := map[string]string{"friendly_name": e.Name}
	if e.Unit != "" {
		attrs["unit_of_measurement"] = e.Unit
	}
	if e.DeviceClass != "" {
		attrs["device_class"] = e.DeviceClass
	}
	if e.StateClass != "" {
		attrs["state_class"] = e.StateClass
	}
	return HAState{State: value, Attributes: attrs}
}

func (p *Publisher) publishHA(ctx context.Context, entities []Entity, snap models.Snapshot) error {
	var errs []error
	for _, e := range entities {
		value, ok := snap[e.Key]
		if !ok {
			continue
		}
		if err := p.postState(ctx, e, value); err != nil {
			p.logger.Warn("Posting state failed", zap.String("entity", e.ObjectID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) postState(ctx context.Context, e Entity, value string) error {
	apiURL := fmt.Sprintf("%s/api/states/sensor.%s", strings.TrimRight(p.haConfig.URL, "/"), e.ObjectID)

	body, err := json.Marshal(State(e, value))
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.haConfig.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	// 201 when the entity is created, 200 on update
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error for %s: status %d, response: %s", e.ObjectID, resp.StatusCode, string(respBody))
	}

	return nil
}
