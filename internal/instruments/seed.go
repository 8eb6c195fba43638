package instruments

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rezaHssini/OKX-public-market-price-subscription/internal/models"
)

// SeedConfig represents the YAML seed file structure: a mapping from market
// type to its instrument identifier list.
type SeedConfig struct {
	Markets map[string][]string `yaml:"markets"`
}

// LoadSeedFromYAML loads pre-seeded instrument lists from a YAML file.
// Market type keys are validated and normalized to their canonical form.
func LoadSeedFromYAML(filePath string) (map[models.MarketType][]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var config SeedConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse seed YAML: %w", err)
	}

	if len(config.Markets) == 0 {
		return nil, fmt.Errorf("no markets found in seed file")
	}

	seed := make(map[models.MarketType][]string, len(config.Markets))
	for key, ids := range config.Markets {
		mt, err := models.ParseMarketType(key)
		if err != nil {
			return nil, fmt.Errorf("invalid market type in seed file: %w", err)
		}
		seed[mt] = ids
	}

	return seed, nil
}
