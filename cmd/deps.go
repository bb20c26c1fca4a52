package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hire-matcher/internal/embedding"
	"github.com/spigell/hire-matcher/internal/logger"
	"github.com/spigell/hire-matcher/internal/matcher"
	"github.com/spigell/hire-matcher/internal/pipeline"
	"github.com/spigell/hire-matcher/internal/secrets"
	"github.com/spigell/hire-matcher/internal/store"
)

// deps holds the long lived components shared by commands.
type deps struct {
	config *Config
	logger *zap.Logger
	store  *store.Store
	svc    *pipeline.Service
	redis  []*redis.Client

	mu     sync.Mutex
	caches []*embedding.Cache
}

func (d *deps) Close() {
	d.logCacheStats()
	for _, rdb := range d.redis {
		rdb.Close()
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("closing store", zap.Error(err))
		}
	}
	d.logger.Sync()
}

func newLogger() *zap.Logger {
	l, err := logger.New(logger.Options{
		JSON:    viper.GetBool("json"),
		Debug:   viper.GetBool("debug"),
		Service: app,
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

func (d *deps) trackCache(c *embedding.Cache) *embedding.Cache {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.caches = append(d.caches, c)
	return c
}

func (d *deps) logCacheStats() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.caches {
		hits, misses := c.Stats()
		logger.WithEmbedding(d.logger, c.Provider(), c.Model()).Info("embedding cache",
			zap.Int64("hits", hits),
			zap.Int64("misses", misses),
		)
	}
}

// setup builds the config, logger, store and pipeline service.
func setup(ctx context.Context) (*deps, error) {
	l := newLogger()

	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("getting a config: %w", err)
	}

	d := &deps{config: config, logger: l}

	dsn, err := secrets.Load(secrets.Source{
		Name:  "database dsn",
		Value: config.Database.DSN,
		File:  config.Database.DSNFile,
		Env:   envPrefix + "_DATABASE_DSN",
	})
	if err != nil {
		return nil, err
	}
	dbCfg := config.Database
	dbCfg.DSN = dsn

	d.store, err = store.Open(ctx, dbCfg, l)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	scorer := matcher.New(d.newEmbedder(), matcher.WithLogger(l.Named("matcher")))
	d.svc = pipeline.NewService(d.store, scorer, config.Pipeline, l.Named("pipeline"))

	return d, nil
}

// newEmbedder returns the configured embedder. Gemini is built on first use so
// commands that never score do not need an API key.
func (d *deps) newEmbedder() embedding.Embedder {
	cfg := d.config.Embedding
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	cache := embedding.CacheConfig{
		Redis:      d.connectRedis(cfg.Cache.RedisURL, "embedding cache"),
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
	}

	switch provider {
	case "", embedding.ProviderHashing:
		h := embedding.NewHashing(cfg.Dimensions)
		return d.trackCache(embedding.NewCache(h, cache, logger.WithEmbedding(d.logger, h.Provider(), h.Model())))
	case embedding.ProviderGemini:
		return embedding.NewLazy(func(ctx context.Context) (embedding.Embedder, error) {
			apiKey, err := secrets.Load(secrets.Source{
				Name:  "gemini api key",
				Value: cfg.Gemini.APIKey,
				File:  cfg.Gemini.APIKeyFile,
				Env:   "GEMINI_API_KEY",
			})
			if err != nil {
				return nil, fmt.Errorf("%w (set embedding.gemini.api-key-file or GEMINI_API_KEY)", err)
			}

			genLogger := logger.WithEmbedding(d.logger, embedding.ProviderGemini, cfg.Gemini.Model).
				With(zap.Int("retry_attempts", cfg.Gemini.MaxRetries))
			g, err := embedding.NewGemini(ctx, embedding.GeminiConfig{
				APIKey:            apiKey,
				Model:             cfg.Gemini.Model,
				MaxRetries:        cfg.Gemini.MaxRetries,
				RequestsPerSecond: cfg.Gemini.RequestsPerSecond,
			}, genLogger)
			if err != nil {
				return nil, err
			}
			return d.trackCache(embedding.NewCache(g, cache, genLogger)), nil
		})
	default:
		d.logger.Warn("unknown embedding provider, scoring disabled", zap.String("provider", cfg.Provider))
		return nil
	}
}

// connectRedis returns nil when url is empty or the server is unreachable.
func (d *deps) connectRedis(url, purpose string) *redis.Client {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		d.logger.Warn("invalid redis url, continuing without redis", zap.String("purpose", purpose), zap.Error(err))
		return nil
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		d.logger.Warn("redis unreachable, continuing without redis", zap.String("purpose", purpose), zap.Error(err))
		rdb.Close()
		return nil
	}

	d.logger.Info("redis connected", zap.String("purpose", purpose), zap.String("addr", opts.Addr))
	d.redis = append(d.redis, rdb)
	return rdb
}
