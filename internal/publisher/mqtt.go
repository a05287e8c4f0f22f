package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/jgoulah/ecomane/internal/config"
	"github.com/jgoulah/ecomane/pkg/models"
)

const publishTimeout = 10 * time.Second

// broker is the part of mqtt.Client the publisher uses
type broker interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher handles publishing to Home Assistant
type Publisher struct {
	client          broker
	nodeID          string
	topicPrefix     string
	discoveryPrefix string
	haConfig        config.HAConfig
	httpClient      *http.Client
	logger          *zap.Logger

	mu        sync.Mutex
	announced map[string]bool // discovery topics already sent
}

// New creates a new publisher (supports both MQTT discovery and the HA HTTP API)
func New(mqttCfg config.MQTTConfig, haCfg config.HAConfig, logger *zap.Logger) (*Publisher, error) {
	if haCfg.Enabled {
		if haCfg.URL == "" {
			return nil, fmt.Errorf("Home Assistant URL is required when enabled")
		}
		if haCfg.Token == "" {
			return nil, fmt.Errorf("Home Assistant token is required when enabled")
		}
	}

	p := &Publisher{
		nodeID:          mqttCfg.ClientID,
		topicPrefix:     mqttCfg.TopicPrefix,
		discoveryPrefix: mqttCfg.DiscoveryPrefix,
		haConfig:        haCfg,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		logger:          logger,
		announced:       map[string]bool{},
	}
	if p.nodeID == "" {
		p.nodeID = entityPrefix
	}
	if p.topicPrefix == "" {
		p.topicPrefix = entityPrefix
	}
	if p.discoveryPrefix == "" {
		p.discoveryPrefix = "homeassistant"
	}

	if mqttCfg.Enabled {
		if mqttCfg.Broker == "" {
			return nil, fmt.Errorf("MQTT broker address is required when enabled")
		}

		opts := mqtt.NewClientOptions()
		opts.AddBroker(fmt.Sprintf("tcp://%s", mqttCfg.Broker))
		opts.SetClientID(p.nodeID)
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		opts.SetConnectTimeout(10 * time.Second)

		if mqttCfg.Username != "" {
			opts.SetUsername(mqttCfg.Username)
		}
		if mqttCfg.Password != "" {
			opts.SetPassword(mqttCfg.Password)
		}

		opts.OnConnect = func(mqtt.Client) {
			logger.Info("Connected to MQTT broker", zap.String("broker", mqttCfg.Broker))
			// a restarted broker may have lost retained configs
			p.mu.Lock()
			p.announced = map[string]bool{}
			p.mu.Unlock()
		}
		opts.OnConnectionLost = func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", zap.Error(err))
		}

		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
		}
		p.client = client
	}

	return p, nil
}

// Enabled reports whether any output is configured
func (p *Publisher) Enabled() bool {
	return p.client != nil || p.haConfig.Enabled
}

// Publish sends every sensor of poll to MQTT and/or the Home Assistant API.
// Failures on one output do not stop the other.
func (p *Publisher) Publish(ctx context.Context, poll *models.Poll) error {
	if !p.Enabled() {
		return fmt.Errorf("no publisher is enabled in config")
	}

	entities := Entities(p.nodeID, poll)

	var errs []error
	if p.client != nil {
		if err := p.publishMQTT(entities, poll.Snapshot); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	if p.haConfig.Enabled {
		if err := p.publishHA(ctx, entities, poll.Snapshot); err != nil {
			errs = append(errs, fmt.Errorf("home assistant: %w", err))
		}
	}

	p.logger.Debug("Published poll",
		zap.String("poll", poll.ID),
		zap.Int("entities", len(entities)),
		zap.Int("errors", len(errs)))
	return errors.Join(errs...)
}

func (p *Publisher) publishMQTT(entities []Entity, snap models.Snapshot) error {
	for _, e := range entities {
		if err := p.announce(e); err != nil {
			return err
		}

		value, ok := snap[e.Key]
		if !ok {
			continue
		}
		if err := p.send(StateTopic(p.topicPrefix, e.Key), false, value); err != nil {
			return err
		}
	}
	return nil
}

// announce publishes the retained discovery config once per connection
func (p *Publisher) announce(e Entity) error {
	topic := DiscoveryTopic(p.discoveryPrefix, p.nodeID, e)

	p.mu.Lock()
	done := p.announced[topic]
	p.mu.Unlock()
	if done {
		return nil
	}

	payload, err := json.Marshal(Discovery(e, p.nodeID, p.topicPrefix))
	if err != nil {
		return fmt.Errorf("encoding discovery payload: %w", err)
	}
	if err := p.send(topic, true, payload); err != nil {
		return err
	}

	p.mu.Lock()
	p.announced[topic] = true
	p.mu.Unlock()
	return nil
}

func (p *Publisher) send(topic string, retained bool, payload interface{}) error {
	token := p.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
