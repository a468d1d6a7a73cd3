package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Carrier maps a mobile carrier to its email-to-SMS relay domain.
type Carrier struct {
	Key     string `mapstructure:"key" json:"value"`
	Gateway string `mapstructure:"gateway" json:"-"`
	Label   string `mapstructure:"label" json:"label"`
}

type CarrierConfig struct {
	Carriers []Carrier `mapstructure:"carriers"`
}

func DefaultCarrierConfig() CarrierConfig {
	return CarrierConfig{
		Carriers: []Carrier{
			{Key: "tmobile", Gateway: "tmomail.net", Label: "T-Mobile / Mint / Metro"},
			{Key: "att", Gateway: "txt.att.net", Label: "AT&T / Cricket"},
			{Key: "verizon", Gateway: "vtext.com", Label: "Verizon"},
			{Key: "sprint", Gateway: "messaging.sprintpcs.com", Label: "Sprint"},
		},
	}
}

// Lookup returns the carrier registered under key (case-insensitive).
func (c CarrierConfig) Lookup(key string) (Carrier, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, carrier := range c.Carriers {
		if carrier.Key == key {
			return carrier, true
		}
	}
	return Carrier{}, false
}

// Keys returns the sorted carrier keys.
func (c CarrierConfig) Keys() []string {
	keys := make([]string, 0, len(c.Carriers))
	for _, carrier := range c.Carriers {
		keys = append(keys, carrier.Key)
	}
	sort.Strings(keys)
	return keys
}

type CarrierConfigHolder struct {
	current atomic.Value // holds CarrierConfig
}

// NewStaticCarrierConfigHolder returns a holder that never reloads.
func NewStaticCarrierConfigHolder(cfg CarrierConfig) *CarrierConfigHolder {
	holder := &CarrierConfigHolder{}
	holder.current.Store(normalizeCarrierConfig(cfg))
	return holder
}

func NewCarrierConfigHolder(logger *zap.Logger) (*CarrierConfigHolder, error) {
	log := logger.Named("config.carriers")

	v := viper.New()

	v.SetConfigName("carriers")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/reviewboost")
	v.AddConfigPath(".")

	v.SetEnvPrefix("REVIEWBOOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
		v.SetDefault("carriers", DefaultCarrierConfig().Carriers)
	}

	var cfg CarrierConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg = normalizeCarrierConfig(cfg)
	if err := validateCarrierConfig(cfg); err != nil {
		return nil, err
	}

	holder := &CarrierConfigHolder{}
	holder.current.Store(cfg)
	log.Info("carrier config loaded", zap.Bool("from_file", fileFound), zap.Strings("carriers", cfg.Keys()))

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated CarrierConfig
			if err := v.Unmarshal(&updated); err != nil {
				log.Warn("carrier config reload failed", zap.Error(err))
				return
			}
			updated = normalizeCarrierConfig(updated)
			if err := validateCarrierConfig(updated); err != nil {
				log.Warn("invalid carrier config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("carrier config reloaded", zap.String("file", e.Name), zap.Int("carriers", len(updated.Carriers)))
		})
	}

	return holder, nil
}

func (h *CarrierConfigHolder) Get() CarrierConfig {
	return h.current.Load().(CarrierConfig)
}

func normalizeCarrierConfig(cfg CarrierConfig) CarrierConfig {
	out := CarrierConfig{Carriers: make([]Carrier, 0, len(cfg.Carriers))}
	for _, carrier := range cfg.Carriers {
		carrier.Key = strings.ToLower(strings.TrimSpace(carrier.Key))
		carrier.Gateway = strings.ToLower(strings.TrimSpace(carrier.Gateway))
		carrier.Label = strings.TrimSpace(carrier.Label)
		if carrier.Label == "" {
			carrier.Label = carrier.Key
		}
		out.Carriers = append(out.Carriers, carrier)
	}
	return out
}

func validateCarrierConfig(cfg CarrierConfig) error {
	if len(cfg.Carriers) == 0 {
		return errors.New("carriers cannot be empty")
	}
	seen := make(map[string]struct{}, len(cfg.Carriers))
	for _, carrier := range cfg.Carriers {
		if carrier.Key == "" || carrier.Gateway == "" {
			return errors.New("carrier key and gateway are required")
		}
		if _, ok := seen[carrier.Key]; ok {
			return fmt.Errorf("duplicate carrier %q", carrier.Key)
		}
		seen[carrier.Key] = struct{}{}
	}
	return nil
}
