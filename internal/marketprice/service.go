package marketprice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rezaHssini/OKX-public-market-price-subscription/internal/metrics"
	"github.com/rezaHssini/OKX-public-market-price-subscription/internal/models"
	"github.com/rezaHssini/OKX-public-market-price-subscription/internal/repository"
)

// ErrNilCallback is returned by Get when no ticker callback is supplied.
// There is no default no-op callback.
var ErrNilCallback = errors.New("ticker callback is required")

// TickerCallback receives each decoded inbound ticker. It runs on the stream
// read goroutine and must not block.
type TickerCallback func(ticker models.Ticker)

// InstrumentSource fetches the instrument identifier list for a market type.
type InstrumentSource interface {
	Fetch(ctx context.Context, marketType models.MarketType) ([]string, error)
}

// TickerPublisher forwards delivered tickers to an external channel.
type TickerPublisher interface {
	PublishTicker(ctx context.Context, ticker *models.Ticker) error
}

// Service resolves a paginated instrument directory per market type and keeps
// exactly one live streaming subscription at a time. Get and Dispose are
// expected to be invoked sequentially by a single caller.
type Service struct {
	source    InstrumentSource
	sub       *SubscriptionManager
	publisher TickerPublisher
	logger    *logrus.Logger
	pageSize  int
	verbose   bool

	reposMu sync.RWMutex
	repos   map[models.MarketType]*repository.CurrencyRepository
}

// NewService creates a market price service. publisher may be nil.
func NewService(source InstrumentSource, sub *SubscriptionManager, publisher TickerPublisher, pageSize int, verbose bool, logger *logrus.Logger) *Service {
	return &Service{
		source:    source,
		sub:       sub,
		publisher: publisher,
		logger:    logger,
		pageSize:  pageSize,
		verbose:   verbose,
		repos:     make(map[models.MarketType]*repository.CurrencyRepository),
	}
}

// Seed pre-populates the per-market instrument cache, bypassing the REST
// fetch for the seeded market types.
func (s *Service) Seed(seed map[models.MarketType][]string) {
	s.reposMu.Lock()
	defer s.reposMu.Unlock()

	for mt, ids := range seed {
		s.repos[mt] = repository.NewCurrencyRepository(ids, s.pageSize)
		s.logger.WithFields(logrus.Fields{
			"market": mt.String(),
			"count":  len(ids),
		}).Info("Seeded instrument repository")
	}
}

// Get tears down any previous subscription, resolves the requested instrument
// page for the market type (cache hit or REST fetch) and opens a new
// subscription delivering tickers to callback. filter optionally restricts
// the page to identifiers containing it as a case-insensitive substring.
func (s *Service) Get(ctx context.Context, page int, marketType models.MarketType, callback TickerCallback, filter string) error {
	if callback == nil {
		return ErrNilCallback
	}

	// At most one active subscription system-wide
	if err := s.sub.Stop(); err != nil {
		return fmt.Errorf("failed to stop previous subscription: %w", err)
	}

	repo, err := s.repoFor(ctx, marketType)
	if err != nil {
		s.logger.WithError(err).WithField("market", marketType.String()).Error("Failed to resolve instrument list")
		return err
	}

	instrumentPage := repo.Page(page, filter)
	s.logger.WithFields(logrus.Fields{
		"market":      marketType.String(),
		"page":        page,
		"filter":      filter,
		"instruments": len(instrumentPage),
	}).Info("Opening subscription")

	return s.sub.Start(ctx, instrumentPage, s.adapt(callback))
}

// Dispose tears down the active subscription. Safe to call repeatedly.
func (s *Service) Dispose() error {
	return s.sub.Stop()
}

// GetPageSize returns the effective page size for a market type, or 0 when no
// repository is cached yet. It never triggers a fetch.
func (s *Service) GetPageSize(marketType models.MarketType) int {
	s.reposMu.RLock()
	defer s.reposMu.RUnlock()

	if repo, ok := s.repos[marketType]; ok {
		return repo.PageSize()
	}
	return 0
}

// GetPageCount returns the page count for a market type, or 0 when no
// repository is cached yet. It never triggers a fetch.
func (s *Service) GetPageCount(marketType models.MarketType) int {
	s.reposMu.RLock()
	defer s.reposMu.RUnlock()

	if repo, ok := s.repos[marketType]; ok {
		return repo.PageCount()
	}
	return 0
}

// repoFor returns the cached repository for a market type, fetching and
// caching it on a miss. A fetch failure leaves the cache unchanged so a later
// call can retry.
func (s *Service) repoFor(ctx context.Context, marketType models.MarketType) (*repository.CurrencyRepository, error) {
	s.reposMu.RLock()
	repo, ok := s.repos[marketType]
	s.reposMu.RUnlock()
	if ok {
		metrics.RepoCacheHits.WithLabelValues(marketType.String()).Inc()
		return repo, nil
	}

	metrics.RepoCacheMisses.WithLabelValues(marketType.String()).Inc()

	ids, err := s.source.Fetch(ctx, marketType)
	if err != nil {
		return nil, err
	}

	repo = repository.NewCurrencyRepository(ids, s.pageSize)

	s.reposMu.Lock()
	s.repos[marketType] = repo
	s.reposMu.Unlock()

	return repo, nil
}

// adapt wraps the caller callback so that each raw frame is decoded and
// unwrapped before delivery. Frames that yield no usable ticker are dropped.
func (s *Service) adapt(callback TickerCallback) FrameHandler {
	return func(raw []byte) {
		ticker, ok := decodeTicker(raw)
		if !ok {
			metrics.MalformedFramesDropped.Inc()
			return
		}

		metrics.TickerFramesReceived.Inc()
		if s.verbose {
			s.logger.WithFields(logrus.Fields{
				"inst_id": ticker.InstID,
				"last":    ticker.LastPrice.String(),
			}).Info("Ticker received")
		}

		callback(ticker)

		if s.publisher != nil {
			if err := s.publisher.PublishTicker(context.Background(), &ticker); err != nil {
				metrics.PublishFailures.Inc()
				s.logger.WithError(err).Debug("Failed to publish ticker")
			} else {
				metrics.PublishSuccess.Inc()
			}
		}
	}
}
