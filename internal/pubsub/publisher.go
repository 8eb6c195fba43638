package pubsub

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/rezaHssini/OKX-public-market-price-subscription/internal/models"
)

// Publisher forwards delivered tickers to a Redis channel per instrument.
type Publisher struct {
	client        *redis.Client
	channelPrefix string
	logger        *logrus.Logger
}

func NewPublisher(client *redis.Client, channelPrefix string, logger *logrus.Logger) *Publisher {
	return &Publisher{
		client:        client,
		channelPrefix: channelPrefix,
		logger:        logger,
	}
}

// PublishTicker publishes a ticker update to its instrument channel
func (p *Publisher) PublishTicker(ctx context.Context, ticker *models.Ticker) error {
	data, err := json.Marshal(ticker)
	if err != nil {
		return err
	}

	channel := p.channelPrefix + ticker.InstID
	return p.client.Publish(ctx, channel, data).Err()
}
