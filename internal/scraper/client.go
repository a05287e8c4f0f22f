package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/jgoulah/ecomane/internal/config"
	"github.com/jgoulah/ecomane/pkg/models"
)

// FetchError is returned when the device cannot be reached or answers with a
// non-2xx status. It always matches models.ErrUpdateFailed.
type FetchError struct {
	URL        string
	Page       int // power breakdown page, 0 for the usage page
	TotalPages int // page count declared by the last page parsed
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fetching %s", e.URL)
	if e.Page > 0 {
		fmt.Fprintf(&b, " (page %d of %d)", e.Page, e.TotalPages)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports FetchError as an update failure
func (e *FetchError) Is(target error) bool {
	return target == models.ErrUpdateFailed
}

// Options configures a Client
type Options struct {
	BaseURL    string // e.g. http://192.168.1.220
	Encoding   string // WHATWG encoding label, e.g. shift_jis
	UsagePath  string
	PowerPath  string
	SlotPrefix string
	Timeout    time.Duration
	HTTPClient *http.Client // optional, overrides Timeout
}

// Client scrapes the Eco Mane CGI pages
type Client struct {
	baseURL    string
	usagePath  string
	powerPath  string
	slotPrefix string
	encoding   encoding.Encoding
	client     *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a new Eco Mane scraper
func New(opts Options, logger *zap.Logger) (*Client, error) {
	label := opts.Encoding
	if label == "" {
		label = "shift_jis"
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", label, err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	slotPrefix := opts.SlotPrefix
	if slotPrefix == "" {
		slotPrefix = DefaultSlotPrefix
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		usagePath:  strings.TrimLeft(opts.UsagePath, "/"),
		powerPath:  strings.TrimLeft(opts.PowerPath, "/"),
		slotPrefix: slotPrefix,
		encoding:   enc,
		client:     httpClient,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// NewFromConfig creates a scraper from the device section of the config
func NewFromConfig(cfg config.DeviceConfig, logger *zap.Logger) (*Client, error) {
	return New(Options{
		BaseURL:    cfg.BaseURL(),
		Encoding:   cfg.Encoding,
		UsagePath:  cfg.UsagePath,
		PowerPath:  cfg.PowerPath,
		SlotPrefix: cfg.SlotPrefix,
		Timeout:    cfg.RequestTimeout,
	}, logger)
}

// Fetch runs one full polling cycle: the usage page, then every power
// breakdown page. The returned Poll holds a brand-new Snapshot.
func (c *Client) Fetch(ctx context.Context) (*models.Poll, error) {
	poll := &models.Poll{
		ID:        uuid.NewString(),
		Snapshot:  models.Snapshot{},
		StartedAt: c.now(),
	}

	if err := c.FetchUsage(ctx, poll.Snapshot); err != nil {
		return nil, fmt.Errorf("fetching usage: %w", err)
	}

	count, err := c.FetchPower(ctx, poll.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("fetching power breakdown: %w", err)
	}

	poll.CircuitCount = count
	poll.FinishedAt = c.now()
	return poll, nil
}

// UsageURL returns the URL of the "today's usage" page
func (c *Client) UsageURL() string {
	return c.baseURL + "/" + c.usagePath
}

// PowerURL returns the URL of the given power breakdown page
func (c *Client) PowerURL(page int) string {
	sep := "&"
	if !strings.Contains(c.powerPath, "?") {
		sep = "?"
	}
	return fmt.Sprintf("%s/%s%spage=%d", c.baseURL, c.powerPath, sep, page)
}

// getDocument fetches url, decodes it with the device encoding and parses it
func (c *Client) getDocument(ctx context.Context, url string) (*goquery.Document, error) {
	text, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}
	return doc, nil
}

func (c *Client) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	c.logger.Debug("Fetching page", zap.String("url", url))

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	// The device does not declare its charset reliably, so the configured
	// encoding is always applied.
	body, err := io.ReadAll(transform.NewReader(resp.Body, c.encoding.NewDecoder()))
	if err != nil {
		return "", &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response body: %w", err)}
	}

	return string(body), nil
}
