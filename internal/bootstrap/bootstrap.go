// Package bootstrap wires the shared collaborators used by the API server
// and the terminal front end.
package bootstrap

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/capitalize-ai/sentiment-support-agent/internal/config"
	"github.com/capitalize-ai/sentiment-support-agent/internal/llm"
	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
	natsclient "github.com/capitalize-ai/sentiment-support-agent/internal/nats"
	"github.com/capitalize-ai/sentiment-support-agent/internal/service"
	"github.com/capitalize-ai/sentiment-support-agent/internal/store"
	"github.com/capitalize-ai/sentiment-support-agent/internal/usage"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/logger"
)

// Runtime holds the wired collaborators and releases them on Close.
type Runtime struct {
	Client    llm.Client
	Store     store.Store
	Spool     *store.RedisSpool
	Publisher service.EventPublisher

	redis *redis.Client
	nats  *natsclient.Client
	log   *logger.Logger
}

// Build wires the completion client, the store and the optional spool and
// event publisher. Only a completion client failure is fatal; an
// unreachable store leaves it disconnected.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Runtime, error) {
	log = logger.OrGlobal(log)
	rt := &Runtime{log: log}

	client, err := llm.NewClient(llm.Provider(cfg.LLMProvider), cfg.APIKey(), cfg.OpenAIBaseURL)
	if err != nil {
		return nil, err
	}
	rt.Client = llm.NewRetryClient(client, cfg.MaxRetries, log)

	rt.Store = BuildStore(ctx, cfg, log)

	if redisClient := BuildRedisClient(ctx, cfg, log); redisClient != nil {
		rt.redis = redisClient
		rt.Spool = store.NewRedisSpool(redisClient, "", log)
	}

	if cfg.NATSURL != "" {
		nc, err := natsclient.Connect(ctx, natsclient.Config{URL: cfg.NATSURL, Token: cfg.NATSToken, Name: "sentiment-support-agent"}, log)
		if err != nil {
			log.Warn("completion events disabled", zap.Error(err))
		} else {
			pub := natsclient.NewEventPublisher(nc)
			if err := pub.EnsureStream(ctx); err != nil {
				log.Warn("completion events disabled", zap.Error(err))
				nc.Close()
			} else {
				rt.nats = nc
				rt.Publisher = pub
			}
		}
	}

	return rt, nil
}

// BuildStore returns the configured document store. A Mongo store that
// cannot connect is returned disconnected and redials on later use.
func BuildStore(ctx context.Context, cfg *config.Config, log *logger.Logger) store.Store {
	if cfg.StoreBackend == config.BackendMemory {
		log.Info("using in-memory store")
		return store.NewMemoryStore()
	}

	mongoStore := store.NewMongoStore(store.MongoConfig{
		URI:        cfg.MongoURI,
		Database:   cfg.MongoDatabase,
		Collection: cfg.MongoCollection,
		Timeout:    cfg.MongoTimeout,
	}, log)
	if err := mongoStore.Connect(ctx); err != nil {
		log.Warn("document store unavailable, will redial on use", zap.Error(err))
	}
	return mongoStore
}

// BuildRedisClient returns a verified Redis client, or nil when disabled or
// unreachable.
func BuildRedisClient(ctx context.Context, cfg *config.Config, log *logger.Logger) *redis.Client {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis not available, save spool disabled", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}

// Deps returns the chat dependencies, leaving optional parts nil when they
// are not wired.
func (rt *Runtime) Deps() service.Deps {
	deps := service.Deps{
		Client:    rt.Client,
		Store:     rt.Store,
		Publisher: rt.Publisher,
		Logger:    rt.log,
	}
	if rt.Spool != nil {
		deps.Spool = rt.Spool
	}
	return deps
}

// ChatConfig derives the completion settings from cfg.
func ChatConfig(cfg *config.Config) service.ChatConfig {
	return service.ChatConfig{
		Model:       cfg.Model(),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Rates: usage.Rates{
			InputPerMillion:  cfg.InputCostPerMillion,
			OutputPerMillion: cfg.OutputCostPerMillion,
		},
	}
}

// DrainSpool retries parked saves once and announces each record it writes.
func (rt *Runtime) DrainSpool(ctx context.Context) {
	if rt.Spool == nil {
		return
	}
	n, err := rt.Spool.Drain(ctx, rt.Store, rt.publishDrained)
	if err != nil {
		rt.log.Warn("spool drain stopped", zap.Int("saved", n), zap.Error(err))
		return
	}
	if n > 0 {
		rt.log.Info("spool drained", zap.Int("saved", n))
	}
}

func (rt *Runtime) publishDrained(ctx context.Context, recordID string, rec *model.Record, usage model.CostEstimate) {
	if rt.Publisher == nil {
		return
	}
	event := model.NewCompletedEvent(recordID, rec.UserID, rec.TotalMessages, rec.OverallSentiment, usage, time.Now())
	if err := rt.Publisher.PublishCompleted(ctx, event); err != nil {
		rt.log.Warn("failed to publish completion event", zap.String("record_id", recordID), zap.Error(err))
	}
}

// Close releases every connection.
func (rt *Runtime) Close(ctx context.Context) {
	if rt.nats != nil {
		rt.nats.Close()
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.Store != nil {
		if err := rt.Store.Close(ctx); err != nil {
			rt.log.Warn("failed to close store", zap.Error(err))
		}
	}
}
