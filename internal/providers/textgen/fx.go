package textgen

import (
	"context"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/smallbiznis/reviewboost/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.textgen",
	fx.Provide(NewFromConfig),
)

// NewFromConfig builds an ark chat model. Missing credentials leave the
// service running; every generation then fails with ErrGeneration.
func NewFromConfig(cfg config.Config, log *zap.Logger) (Generator, error) {
	if cfg.TextGen.APIKey == "" || cfg.TextGen.Model == "" {
		log.Warn("text generation is not configured", zap.Bool("api_key", cfg.TextGen.APIKey != ""), zap.Bool("model", cfg.TextGen.Model != ""))
		return unconfigured{}, nil
	}

	cm, err := ark.NewChatModel(context.Background(), &ark.ChatModelConfig{
		BaseURL: cfg.TextGen.BaseURL,
		APIKey:  cfg.TextGen.APIKey,
		Model:   cfg.TextGen.Model,
	})
	if err != nil {
		return nil, err
	}
	log.Info("text generation model initialized", zap.String("model", cfg.TextGen.Model))
	return NewChatGenerator(cm, cfg.TextGen.Timeout, log), nil
}
