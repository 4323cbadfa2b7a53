// Package config loads the blog server configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var (
	ErrConfParamMissing = errors.New("configuration parameter missing")
	ErrConfParamInvalid = errors.New("configuration parameter invalid")
)

// Duration is a time.Duration read from strings like "30m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	ServiceName string `toml:"serviceName"`
	HTTPAddr    string `toml:"httpAddr"`
	LogLevel    string `toml:"logLevel"`

	ContentEndpoint string   `toml:"contentEndpoint"`
	ContentTimeout  Duration `toml:"contentTimeout"`
	DocumentType    string   `toml:"documentType"`
	PageSize        int      `toml:"pageSize"`
	Revalidate      Duration `toml:"revalidate"`

	Locale   string `toml:"locale"`
	TimeZone string `toml:"timeZone"`

	SessionTTL Duration `toml:"sessionTTL"`

	LoadMoreRPS   float64 `toml:"loadMoreRPS"`
	LoadMoreBurst int     `toml:"loadMoreBurst"`

	KafkaAddr  string `toml:"kafkaAddr"`
	KafkaTopic string `toml:"kafkaTopic"`
	KafkaBatch int    `toml:"kafkaBatch"`
}

// Default returns the configuration used for keys missing from the file.
func Default() Config {
	return Config{
		ServiceName:    "blog",
		HTTPAddr:       ":8044",
		LogLevel:       "info",
		ContentTimeout: Duration{5 * time.Second},
		DocumentType:   "posts",
		PageSize:       20,
		Revalidate:     Duration{30 * time.Minute},
		Locale:         "pt-BR",
		TimeZone:       "UTC",
		SessionTTL:     Duration{30 * time.Minute},
		LoadMoreRPS:    2,
		LoadMoreBurst:  5,
		KafkaBatch:     1,
	}
}

// Load decodes the TOML file at path on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.ContentEndpoint == "" {
		return fmt.Errorf("%w: contentEndpoint", ErrConfParamMissing)
	}
	if !strings.HasPrefix(c.ContentEndpoint, "http://") && !strings.HasPrefix(c.ContentEndpoint, "https://") {
		return fmt.Errorf("%w: contentEndpoint must be an http(s) URL", ErrConfParamInvalid)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: httpAddr", ErrConfParamMissing)
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("%w: pageSize must be between 1 and 100", ErrConfParamInvalid)
	}
	if c.Revalidate.Duration <= 0 {
		return fmt.Errorf("%w: revalidate must be positive", ErrConfParamInvalid)
	}
	if c.LoadMoreRPS <= 0 || c.LoadMoreBurst <= 0 {
		return fmt.Errorf("%w: loadMoreRPS and loadMoreBurst must be positive", ErrConfParamInvalid)
	}
	if (c.KafkaAddr == "") != (c.KafkaTopic == "") {
		return fmt.Errorf("%w: kafkaAddr and kafkaTopic must be set together", ErrConfParamInvalid)
	}

	return nil
}

// Location resolves TimeZone.
func (c Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.TimeZone)
}

func (c Config) KafkaEnabled() bool {
	return c.KafkaAddr != "" && c.KafkaTopic != ""
}

func (c Config) String() string {
	return fmt.Sprintf("service=%s http=%s content=%s type=%s pageSize=%d revalidate=%s locale=%s tz=%s kafka=%s/%s",
		c.ServiceName, c.HTTPAddr, c.ContentEndpoint, c.DocumentType, c.PageSize, c.Revalidate, c.Locale, c.TimeZone, c.KafkaAddr, c.KafkaTopic)
}
