package publisher

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jgoulah/ecomane/pkg/models"
)

const (
	manufacturer = "Panasonic"
	model        = "Eco Mane HEMS"

	deviceUsage = "Daily Usage"
	devicePower = "Power Consumption"

	entityPrefix = "ecomane"
)

// Entity is one Home Assistant sensor derived from a snapshot key
type Entity struct {
	Key         string // snapshot key holding the state
	ObjectID    string
	Name        string
	UniqueID    string
	Unit        string
	DeviceClass string
	StateClass  string
	Device      string // device group the sensor belongs to
}

// Device is the device block of an MQTT discovery payload
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// DiscoveryConfig is the retained MQTT discovery payload for a sensor
type DiscoveryConfig struct {
	Name              string `json:"name"`
	UniqueID          string `json:"unique_id"`
	ObjectID          string `json:"object_id"`
	StateTopic        string `json:"state_topic"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	DeviceClass       string `json:"device_class,omitempty"`
	StateClass        string `json:"state_class,omitempty"`
	Device            Device `json:"device"`
}

// UsageEntities returns one sensor per usage metric
func UsageEntities(nodeID string) []Entity {
	metrics := models.UsageMetrics()
	out := make([]Entity, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, Entity{
			Key:         m.Key,
			ObjectID:    entityPrefix + "_" + m.Name,
			Name:        m.Description,
			UniqueID:    nodeID + "_" + m.Name,
			Unit:        m.Unit,
			DeviceClass: m.DeviceClass,
			StateClass:  m.StateClass,
			Device:      deviceUsage,
		})
	}
	return out
}

// CircuitEntities returns one power sensor per circuit
func CircuitEntities(nodeID string, circuits []models.Circuit) []Entity {
	out := make([]Entity, 0, len(circuits))
	for _, c := range circuits {
		// labels missing from the name table are left as Japanese text,
		// which Home Assistant does not accept in entity ids
		objectID := entityPrefix + "_" + c.Key
		if name := ObjectID(c.EntityName()); isSlug(name) {
			objectID += "_" + name
		}
		out = append(out, Entity{
			Key:         c.Key,
			ObjectID:    objectID,
			Name:        c.Name(),
			UniqueID:    nodeID + "_power_" + c.Key,
			Unit:        models.UnitWatt,
			DeviceClass: "power",
			StateClass:  models.StateClassMeasurement,
			Device:      devicePower,
		})
	}
	return out
}

// Entities returns every sensor for a poll
func Entities(nodeID string, poll *models.Poll) []Entity {
	return append(UsageEntities(nodeID), CircuitEntities(nodeID, poll.Circuits())...)
}

// Discovery builds the discovery payload for e
func Discovery(e Entity, nodeID, topicPrefix string) DiscoveryConfig {
	return DiscoveryConfig{
		Name:              e.Name,
		UniqueID:          e.UniqueID,
		ObjectID:          e.ObjectID,
		StateTopic:        StateTopic(topicPrefix, e.Key),
		UnitOfMeasurement: e.Unit,
		DeviceClass:       e.DeviceClass,
		StateClass:        e.StateClass,
		Device: Device{
			Identifiers:  []string{nodeID + "_" + ObjectID(e.Device)},
			Name:         e.Device,
			Manufacturer: manufacturer,
			Model:        model,
		},
	}
}

// DiscoveryTopic is where Home Assistant looks for the sensor config
func DiscoveryTopic(discoveryPrefix, nodeID string, e Entity) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", discoveryPrefix, nodeID, e.ObjectID)
}

// StateTopic is where the value of a snapshot key is published
func StateTopic(topicPrefix, key string) string {
	return fmt.Sprintf("%s/%s/state", topicPrefix, key)
}

// ObjectID makes s usable in topics and entity ids: ASCII letters are
// lower-cased and whitespace or MQTT wildcards become underscores.
func ObjectID(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r), r == '/', r == '+', r == '#':
			return '_'
		case r < unicode.MaxASCII:
			return unicode.ToLower(r)
		}
		return r
	}, strings.TrimSpace(s))
}

// isSlug reports whether s is a non-empty [a-z0-9_] string
func isSlug(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}
