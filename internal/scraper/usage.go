package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jgoulah/ecomane/pkg/models"
)

// FetchUsage reads the "today's usage" page into snap
func (c *Client) FetchUsage(ctx context.Context, snap models.Snapshot) error {
	url := c.UsageURL()
	doc, err := c.getDocument(ctx, url)
	if err != nil {
		return err
	}

	found := ParseUsage(doc, snap)
	c.logger.Debug("Parsed usage page",
		zap.String("url", url),
		zap.Int("found", found),
		zap.Int("expected", len(models.UsageMetrics())))
	return nil
}

// ParseUsage stores the trimmed text of every usage metric div present in doc.
// Metrics missing from the page are skipped; firmware versions differ in
// which values they render. It returns the number of metrics found.
func ParseUsage(doc *goquery.Document, snap models.Snapshot) int {
	found := 0
	for _, metric := range models.UsageMetrics() {
		sel := doc.Find(fmt.Sprintf(`div[id="%s"]`, metric.Key)).First()
		if sel.Length() == 0 {
			continue
		}
		snap[metric.Key] = strings.TrimSpace(sel.Text())
		found++
	}
	return found
}
