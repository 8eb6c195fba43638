package models

import (
	"fmt"
	"strings"
)

// MarketType is a trading category partitioning the instrument universe.
type MarketType string

const (
	MarketSpot    MarketType = "SPOT"
	MarketMargin  MarketType = "MARGIN"
	MarketSwap    MarketType = "SWAP"
	MarketFutures MarketType = "FUTURES"
	MarketOption  MarketType = "OPTION"
)

// ParseMarketType normalizes a market type string to its canonical uppercase form.
func ParseMarketType(s string) (MarketType, error) {
	mt := MarketType(strings.ToUpper(strings.TrimSpace(s)))
	switch mt {
	case MarketSpot, MarketMargin, MarketSwap, MarketFutures, MarketOption:
		return mt, nil
	}
	return "", fmt.Errorf("unknown market type %q", s)
}

func (m MarketType) String() string {
	return string(m)
}
