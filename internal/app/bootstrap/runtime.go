package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/radiancehq/medspa-waitlist/internal/config"
	"github.com/radiancehq/medspa-waitlist/internal/notify"
	"github.com/radiancehq/medspa-waitlist/internal/observability/metrics"
	"github.com/radiancehq/medspa-waitlist/internal/waitlist"
	"github.com/radiancehq/medspa-waitlist/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildGateway wires the notification gateway from configured providers.
// Missing credentials fall back to stub senders so dev environments work
// without Twilio or SendGrid accounts.
func BuildGateway(cfg *appconfig.Config, logger *logging.Logger) *notify.Gateway {
	if logger == nil {
		logger = logging.Default()
	}

	var sms notify.SMSSender
	if twilio := notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger); twilio != nil {
		sms = twilio
	} else {
		logger.Warn("twilio not configured, using stub SMS sender")
		sms = notify.NewStubSMSSender(logger)
	}

	var email notify.EmailSender
	if sendgrid := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sendgrid != nil {
		email = sendgrid
	} else {
		logger.Warn("sendgrid not configured, using stub email sender")
		email = notify.NewStubEmailSender(logger)
	}

	return notify.NewGateway(sms, email, cfg.PublicBaseURL, logger)
}

// BuildWaitlistService assembles the lifecycle manager. A nil pool selects
// the in-memory store and guard, which is only suitable for development.
func BuildWaitlistService(
	pool *pgxpool.Pool,
	redisClient *redis.Client,
	cfg *appconfig.Config,
	gateway waitlist.NotificationGateway,
	m *metrics.WaitlistMetrics,
	logger *logging.Logger,
) *waitlist.Service {
	if logger == nil {
		logger = logging.Default()
	}

	var store waitlist.Store
	var guard waitlist.Guard
	if pool != nil {
		store = waitlist.NewPostgresStore(pool)
		guard = waitlist.NewPostgresGuard(pool)
	} else {
		logger.Warn("no database configured, using in-memory waitlist state")
		store = waitlist.NewMemoryStore()
		guard = waitlist.NewMemoryGuard()
	}

	return waitlist.NewService(waitlist.ServiceDeps{
		Store:      store,
		Guard:      guard,
		Gateway:    gateway,
		TokenCache: waitlist.NewTokenCache(redisClient),
		Metrics:    m,
		Logger:     logger,
	}, serviceConfig(cfg))
}

func serviceConfig(cfg *appconfig.Config) waitlist.Config {
	out := waitlist.DefaultConfig()
	if cfg == nil {
		return out
	}
	out.OfferTTL = cfg.OfferTTL
	out.NotifyTimeout = cfg.NotifyTimeout
	if cfg.DeclinePolicy == string(waitlist.DeclineRemove) {
		out.DeclinePolicy = waitlist.DeclineRemove
	}
	out.Score.WaitBonusPerDay = cfg.WaitBonusPerDay
	out.Score.WaitBonusCapDays = cfg.WaitBonusCapDays
	out.Score.FastResponderBonus = cfg.FastResponderBonus
	out.Score.FastResponseThreshold = cfg.FastResponseThreshold
	out.Score.OfferPenalty = cfg.OfferPenalty
	return out
}
