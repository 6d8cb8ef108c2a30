package ism

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/wonny/aegis-committee/pkg/httputil"
	"github.com/wonny/aegis-committee/pkg/logger"
)

// DefaultURL is the ISM manufacturing report landing page
const DefaultURL = "https://go.weareism.org/ism-manufacturing-pmi"

// Plausible PMI bounds; anything outside is a parse of the wrong number
const (
	minPMI = 30.0
	maxPMI = 70.0
)

var pmiRe = regexp.MustCompile(`(?i)Manufacturing PMI[^0-9]{0,80}at\s+([0-9]{1,2}(?:\.[0-9])?)`)

var (
	ErrPMINotFound   = errors.New("pmi_not_found")
	ErrPMIOutOfRange = errors.New("pmi_out_of_range")
)

// Client scrapes the headline ISM Manufacturing PMI
// ⭐ SSOT: PMI 수집은 이 클라이언트에서만
type Client struct {
	logger  *logger.Logger
	pageURL string
	timeout time.Duration
}

// NewClient creates an ISM client
func NewClient(log *logger.Logger, pageURL string, timeout time.Duration) *Client {
	if pageURL == "" {
		pageURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		logger:  log.WithComponent("ism"),
		pageURL: pageURL,
		timeout: timeout,
	}
}

// ManufacturingPMI visits the report page and extracts "Manufacturing PMI® at 48.7%"
func (c *Client) ManufacturingPMI(ctx context.Context) (float64, error) {
	collector := colly.NewCollector(
		colly.UserAgent(httputil.DefaultUserAgent),
		colly.StdlibContext(ctx),
	)
	collector.SetRequestTimeout(c.timeout)

	var text string
	var visitErr error

	collector.OnHTML("body", func(e *colly.HTMLElement) {
		text = e.Text
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= 400 {
			visitErr = &httputil.StatusError{Code: r.StatusCode}
			return
		}
		visitErr = err
	})

	if err := collector.Visit(c.pageURL); err != nil && visitErr == nil {
		visitErr = err
	}
	collector.Wait()

	if visitErr != nil {
		return 0, visitErr
	}

	pmi, err := ParsePMI(text)
	if err != nil {
		return 0, err
	}

	c.logger.WithField("pmi", pmi).Debug("Fetched ISM PMI")
	return pmi, nil
}

// ParsePMI finds the headline PMI in page text and checks it is plausible
func ParsePMI(text string) (float64, error) {
	m := pmiRe.FindStringSubmatch(text)
	if m == nil {
		return 0, ErrPMINotFound
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, ErrPMINotFound
	}
	if v < minPMI || v > maxPMI {
		return 0, fmt.Errorf("%w: %.1f", ErrPMIOutOfRange, v)
	}
	return v, nil
}
