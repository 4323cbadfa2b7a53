package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Keeper configures the access log indexer.
type Keeper struct {
	LogLevel     string   `toml:"logLevel"`
	KafkaBrokers []string `toml:"kafkaBrokers"`
	KafkaTopic   string   `toml:"kafkaTopic"`
	KafkaGroupID string   `toml:"kafkaGroupID"`

	ElasticSearchIndex string   `toml:"elasticSearchIndex"`
	ElasticSearchNodes []string `toml:"elasticSearchNodes"`

	NumWorkers int `toml:"numWorkers"`
}

func DefaultKeeper() Keeper {
	return Keeper{
		LogLevel:           "info",
		KafkaGroupID:       "logkeeper",
		ElasticSearchIndex: "access-logs",
		NumWorkers:         4,
	}
}

func LoadKeeper(path string) (Keeper, error) {
	cfg := DefaultKeeper()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Keeper{}, err
	}

	return cfg, nil
}

func (c Keeper) Validate() error {
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("%w: kafkaBrokers", ErrConfParamMissing)
	}
	if c.KafkaTopic == "" {
		return fmt.Errorf("%w: kafkaTopic", ErrConfParamMissing)
	}
	if len(c.ElasticSearchNodes) == 0 {
		return fmt.Errorf("%w: elasticSearchNodes", ErrConfParamMissing)
	}
	if c.ElasticSearchIndex == "" {
		return fmt.Errorf("%w: elasticSearchIndex", ErrConfParamMissing)
	}
	if c.NumWorkers < 1 {
		return fmt.Errorf("%w: numWorkers must be positive", ErrConfParamInvalid)
	}

	return nil
}
