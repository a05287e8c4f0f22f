package scraper

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jgoulah/ecomane/pkg/models"
)

const (
	// SlotsPerPage is the number of circuit slots on one power breakdown page
	SlotsPerPage = 8

	// DefaultSlotPrefix is the id prefix of the slot containers (ojt_01 ... ojt_08)
	DefaultSlotPrefix = "ojt"

	selectorPlace   = "div.txt"
	selectorCircuit = "div.txt2"
	selectorPower   = "div.num"
	selectorMaxPage = `input[name="maxp"]`
)

// FetchPower walks the power breakdown pages, writing every circuit reading
// into snap, and returns the number of circuits found.
//
// The page count is only known after a page has been parsed, so page 1 is
// always fetched and the loop ends once page >= maxp.
func (c *Client) FetchPower(ctx context.Context, snap models.Snapshot) (int, error) {
	counter := 0
	total := 0

	for page := 1; ; page++ {
		url := c.PowerURL(page)
		doc, err := c.getDocument(ctx, url)
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) {
				fe.Page = page
				fe.TotalPages = total
			}
			return 0, err
		}

		before := counter
		total, counter = ParsePowerPage(doc, snap, c.slotPrefix, counter)
		c.logger.Debug("Parsed power page",
			zap.Int("page", page),
			zap.Int("totalPages", total),
			zap.Int("circuits", counter-before))

		if page >= total {
			break
		}
	}

	c.logger.Debug("Power breakdown complete", zap.Int("circuits", counter))
	return counter, nil
}

// ParsePowerPage extracts the circuits on one power breakdown page. counter is
// the index of the first circuit on this page. It returns the page count the
// page declares and the counter after the last circuit found.
func ParsePowerPage(doc *goquery.Document, snap models.Snapshot, slotPrefix string, counter int) (totalPages, next int) {
	totalPages = parseMaxPage(doc)

	for slot := 1; slot <= SlotsPerPage; slot++ {
		id := fmt.Sprintf("%s_%02d", slotPrefix, slot)
		div := doc.Find(fmt.Sprintf(`div[id="%s"]`, id)).First()
		if div.Length() == 0 {
			// slots fill front to back
			break
		}

		if el := div.Find(selectorPlace).First(); el.Length() > 0 {
			snap[models.PlaceKey(counter)] = strings.TrimSpace(el.Text())
		}
		if el := div.Find(selectorCircuit).First(); el.Length() > 0 {
			snap[models.CircuitLabelKey(counter)] = strings.TrimSpace(el.Text())
		}
		if el := div.Find(selectorPower).First(); el.Length() > 0 {
			snap[models.CircuitKey(counter)] = StripUnit(el.Text())
		}
		counter++
	}

	return totalPages, counter
}

// StripUnit drops the trailing watt unit from a power reading ("1234W" -> "1234")
func StripUnit(text string) string {
	value, _, _ := strings.Cut(text, "W")
	return strings.TrimSpace(value)
}

// parseMaxPage reads the hidden maxp field. Absent or non-numeric values
// count as 0, which ends pagination after the current page.
func parseMaxPage(doc *goquery.Document) int {
	value, ok := doc.Find(selectorMaxPage).First().Attr("value")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return n
}
