package instruments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rezaHssini/OKX-public-market-price-subscription/internal/metrics"
	"github.com/rezaHssini/OKX-public-market-price-subscription/internal/models"
)

// InstrumentResponse represents the OKX public instruments API response
type InstrumentResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		InstID string `json:"instId"`
	} `json:"data"`
}

// Fetcher fetches instrument identifiers from the OKX public REST API
type Fetcher struct {
	baseURL    string
	logger     *logrus.Logger
	httpClient *http.Client
}

// NewFetcher creates a new instrument fetcher
func NewFetcher(baseURL string, timeout time.Duration, logger *logrus.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		baseURL: baseURL,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch retrieves the instrument identifier list for one market type.
// The request URL is the configured base URL with the uppercased market type
// appended. Failures are returned to the caller; there is no retry here.
func (f *Fetcher) Fetch(ctx context.Context, marketType models.MarketType) ([]string, error) {
	url := f.baseURL + marketType.String()
	f.logger.WithField("market", marketType.String()).Info("Fetching instrument list")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		metrics.InstrumentFetches.WithLabelValues(marketType.String(), "error").Inc()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		metrics.InstrumentFetches.WithLabelValues(marketType.String(), "error").Inc()
		return nil, fmt.Errorf("instrument fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.InstrumentFetches.WithLabelValues(marketType.String(), "error").Inc()
		return nil, fmt.Errorf("instrument API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.InstrumentFetches.WithLabelValues(marketType.String(), "error").Inc()
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var instResp InstrumentResponse
	if err := json.Unmarshal(body, &instResp); err != nil {
		metrics.InstrumentFetches.WithLabelValues(marketType.String(), "error").Inc()
		return nil, fmt.Errorf("failed to parse instrument response: %w", err)
	}

	if instResp.Code != "" && instResp.Code != "0" {
		metrics.InstrumentFetches.WithLabelValues(marketType.String(), "error").Inc()
		return nil, fmt.Errorf("instrument API error %s: %s", instResp.Code, instResp.Msg)
	}

	ids := make([]string, 0, len(instResp.Data))
	for _, item := range instResp.Data {
		if item.InstID != "" {
			ids = append(ids, item.InstID)
		}
	}

	metrics.InstrumentFetches.WithLabelValues(marketType.String(), "success").Inc()
	f.logger.WithFields(logrus.Fields{
		"market": marketType.String(),
		"count":  len(ids),
	}).Info("Fetched instrument list")

	return ids, nil
}
