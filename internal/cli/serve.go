package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"jobflow/internal/config"
	"jobflow/internal/domain/ports/adapter"
	aiAdapters "jobflow/internal/infra/adapters/ai"
	payAdapters "jobflow/internal/infra/adapters/payment"
	"jobflow/internal/infra/api"
	pg "jobflow/internal/infra/db/postgres"
	"jobflow/internal/infra/flags"
	"jobflow/internal/infra/metrics"
	red "jobflow/internal/infra/redis"
	"jobflow/internal/infra/sched"
	"jobflow/internal/infra/sse"
	"jobflow/internal/usecase"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, flag relay and premium expiry worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger, opts, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *zerolog.Logger, opts *rootOptions, migrate bool) error {
	metrics.MustRegister()
	metrics.SetBuildInfo(opts.version, opts.commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	if migrate {
		if err := pg.Migrate(cfg.Database.URL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	userRepo := pg.NewUserRepoCacheDecorator(pg.NewUserRepo(pool), redisClient, cfg.Redis.TTL)
	ledger := pg.NewPaymentLedger(pool)
	jobRepo := pg.NewJobRepo(pool)
	flagRepo := pg.NewFeatureFlagRepo(pool)

	// ---- Flag fan-out: admin write -> Redis channel -> every instance's broadcaster ----
	broadcaster := sse.NewBroadcaster(logger)
	bus := red.NewFlagBus(redisClient, broadcaster, logger)

	// ---- Use cases ----
	userUC := usecase.NewUserUseCase(userRepo, logger)
	jobUC := usecase.NewJobUseCase(jobRepo, logger)
	flagUC := usecase.NewFeatureFlagUseCase(flagRepo, tm, bus, logger)

	gateway := payAdapters.NewPayUGateway(cfg.PayU.Key, cfg.PayU.Salt, cfg.PayU.Live())
	paymentUC := usecase.NewPaymentUseCase(userRepo, ledger, gateway, tm, usecase.PaymentURLs{
		Frontend: cfg.HTTP.FrontendURL,
		Success:  cfg.PayU.SuccessURL,
		Failure:  cfg.PayU.FailureURL,
	}, cfg.PayU.DedupeCallbacks, cfg.Runtime.Dev, logger)

	ai, err := buildAI(ctx, cfg, logger)
	if err != nil {
		return err
	}
	chatUC := usecase.NewChatUseCase(ai, usecase.ChatSettings{
		Model:       cfg.AI.ChatModel,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
	}, logger)

	// ---- Flag seeds ----
	defaults, err := flags.LoadDefaults(flags.DefaultsFS, flags.DefaultsFile)
	if err != nil {
		return fmt.Errorf("flag defaults: %w", err)
	}
	if n, err := flagUC.SeedDefaults(ctx, defaults); err != nil {
		return fmt.Errorf("seed flags: %w", err)
	} else if n > 0 {
		logger.Info().Int("count", n).Msg("feature flags seeded")
	}

	// ---- Background ----
	go func() { _ = bus.Run(ctx) }()
	worker := sched.NewExpiryWorker(cfg.Scheduler.PremiumExpiryInterval, userUC, red.NewLocker(redisClient), logger)
	go func() { _ = worker.Run(ctx) }()
	sampler := sched.NewPoolSampler(cfg.Scheduler.PoolStatsInterval, pool, logger)
	go func() { _ = sampler.Run(ctx) }()

	// ---- HTTP ----
	var chatLimiter api.UserLimiter
	if cfg.AI.RateLimit > 0 {
		chatLimiter = red.NewRateLimiter(redisClient, cfg.AI.RateLimit, cfg.AI.RateWindow)
	}
	srv := api.NewServer(api.Deps{
		Auth:          api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Users:         userUC,
		Payments:      paymentUC,
		Jobs:          jobUC,
		Chat:          chatUC,
		Flags:         flagUC,
		Stream:        broadcaster,
		ChatLimiter:   chatLimiter,
		VerifyLimiter: api.NewIPLimiter(cfg.PayU.VerifyRPS, cfg.PayU.VerifyBurst),
		Health: map[string]api.HealthCheck{
			"postgres": healthPostgres(pool),
			"redis":    redisClient.Ping,
		},
	}, api.Options{
		Addr:            cfg.HTTP.Addr,
		RequestTimeout:  cfg.HTTP.RequestTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		Keepalive:       cfg.HTTP.Keepalive,
		ChatModel:       cfg.AI.ChatModel,
	}, logger)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutdown requested")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
		return err
	}
	return nil
}

func healthPostgres(pool *pgxpool.Pool) api.HealthCheck {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}

// buildAI registers Anthropic unconditionally so a missing key surfaces per
// request; OpenAI and Gemini join only when their keys are set.
func buildAI(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.AIServiceAdapter, error) {
	providers := map[string]adapter.AIServiceAdapter{
		"anthropic": aiAdapters.NewAnthropicAdapter(cfg.AI.AnthropicKey, cfg.AI.AnthropicBaseURL, cfg.AI.ChatModel),
	}
	if cfg.AI.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, "")
		if err != nil {
			return nil, fmt.Errorf("openai adapter: %w", err)
		}
		providers["openai"] = oa
	}
	if cfg.AI.GeminiKey != "" {
		ga, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, "")
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		providers["gemini"] = ga
	}
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	logger.Info().Strs("providers", names).Str("model", cfg.AI.ChatModel).Msg("AI providers registered")

	multi := aiAdapters.NewMultiAIAdapter("anthropic", providers, nil)
	return aiAdapters.NewLimitedAI(multi, cfg.AI.ConcurrentLimit), nil
}
