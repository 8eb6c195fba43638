package marketprice

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezaHssini/OKX-public-market-price-subscription/internal/models"
)

const (
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
	opPing        = "ping"
)

type subscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type tickerRecord struct {
	InstType string `json:"instType"`
	InstID   string `json:"instId"`
	Last     string `json:"last"`
	BidPx    string `json:"bidPx"`
	AskPx    string `json:"askPx"`
	Ts       string `json:"ts"`
}

type tickerFrame struct {
	Arg  subscribeArg      `json:"arg"`
	Data []json.RawMessage `json:"data"`
}

// decodeTicker parses a raw inbound frame and unwraps its first data element.
// ok is false when the frame carries no usable ticker (non-JSON text, missing
// or empty data field, or a first element that is not a ticker object). Such
// frames are dropped by the caller: a lost tick is acceptable, a crashed
// subscription is not.
func decodeTicker(raw []byte) (models.Ticker, bool) {
	var frame tickerFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return models.Ticker{}, false
	}
	if len(frame.Data) == 0 {
		return models.Ticker{}, false
	}

	var rec tickerRecord
	if err := json.Unmarshal(frame.Data[0], &rec); err != nil {
		return models.Ticker{}, false
	}
	if rec.InstID == "" {
		return models.Ticker{}, false
	}

	ticker := models.Ticker{
		InstType: rec.InstType,
		InstID:   rec.InstID,
	}
	ticker.LastPrice, _ = decimal.NewFromString(rec.Last)
	ticker.BidPrice, _ = decimal.NewFromString(rec.BidPx)
	ticker.AskPrice, _ = decimal.NewFromString(rec.AskPx)
	if millis, err := strconv.ParseInt(rec.Ts, 10, 64); err == nil {
		ticker.Timestamp = time.UnixMilli(millis)
	}

	return ticker, true
}
