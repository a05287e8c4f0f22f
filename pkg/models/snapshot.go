package models

import (
	"fmt"
	"maps"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jgoulah/ecomane/internal/names"
)

const (
	// CircuitPrefix prefixes every per-circuit snapshot key
	CircuitPrefix = "em_circuit"

	PlaceSuffix   = "place"
	CircuitSuffix = "circuit"
)

// Snapshot is the flat key/value state scraped during one polling cycle
type Snapshot map[string]string

// Clone returns an independent copy
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return maps.Clone(s)
}

// CircuitKey returns the snapshot key holding the power reading of circuit i
func CircuitKey(i int) string {
	return fmt.Sprintf("%s_%02d", CircuitPrefix, i)
}

// PlaceKey returns the snapshot key holding the place label of circuit i
func PlaceKey(i int) string {
	return CircuitKey(i) + "_" + PlaceSuffix
}

// CircuitLabelKey returns the snapshot key holding the circuit label of circuit i
func CircuitLabelKey(i int) string {
	return CircuitKey(i) + "_" + CircuitSuffix
}

// Circuit is one breaker circuit reading
type Circuit struct {
	Index   int    `json:"index"`
	Key     string `json:"key"`
	Place   string `json:"place"`
	Circuit string `json:"circuit"`
	Power   string `json:"power"`
}

// Name is the display label as the device renders it
func (c Circuit) Name() string {
	return c.Place + " " + c.Circuit
}

// EntityName is the normalized identifier for the circuit
func (c Circuit) EntityName() string {
	return names.Normalize(c.Name())
}

// Watts parses the power reading. ok is false when the reading is missing or
// not numeric.
func (c Circuit) Watts() (decimal.Decimal, bool) {
	return ParseValue(c.Power)
}

// Circuits builds the circuit views for the first count circuits
func (s Snapshot) Circuits(count int) []Circuit {
	out := make([]Circuit, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, Circuit{
			Index:   i,
			Key:     CircuitKey(i),
			Place:   s[PlaceKey(i)],
			Circuit: s[CircuitLabelKey(i)],
			Power:   s[CircuitKey(i)],
		})
	}
	return out
}

// ParseValue parses a scraped numeric string such as "1,234.5"
func ParseValue(raw string) (decimal.Decimal, bool) {
	cleaned := make([]rune, 0, len(raw))
	for _, r := range raw {
		if r == ',' || r == ' ' {
			continue
		}
		cleaned = append(cleaned, r)
	}
	if len(cleaned) == 0 {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(string(cleaned))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Poll is the result of one completed polling cycle
type Poll struct {
	ID           string    `json:"id"`
	Snapshot     Snapshot  `json:"snapshot"`
	CircuitCount int       `json:"circuit_count"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Circuits returns the circuit views for this poll
func (p *Poll) Circuits() []Circuit {
	return p.Snapshot.Circuits(p.CircuitCount)
}
