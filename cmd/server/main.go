package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"dfp-neo/backend/internal/audit"
	audithandler "dfp-neo/backend/internal/audit/handler"
	auditrepo "dfp-neo/backend/internal/audit/repository"
	"dfp-neo/backend/internal/config"
	"dfp-neo/backend/internal/db"
	healthhandler "dfp-neo/backend/internal/health/handler"
	"dfp-neo/backend/internal/identity"
	"dfp-neo/backend/internal/logger"
	"dfp-neo/backend/internal/notify"
	passworddomain "dfp-neo/backend/internal/password/domain"
	passwordhandler "dfp-neo/backend/internal/password/handler"
	passwordsvc "dfp-neo/backend/internal/password/service"
	"dfp-neo/backend/internal/policy/engine"
	"dfp-neo/backend/internal/ratelimit"
	"dfp-neo/backend/internal/security"
	"dfp-neo/backend/internal/server"
	"dfp-neo/backend/internal/server/middleware"
	sessiondomain "dfp-neo/backend/internal/session/domain"
	sessionhandler "dfp-neo/backend/internal/session/handler"
	sessionsvc "dfp-neo/backend/internal/session/service"
	otelsetup "dfp-neo/backend/internal/telemetry/otel"
	"dfp-neo/backend/internal/tokenstore"
	userrepo "dfp-neo/backend/internal/user/repository"
)

const shutdownTimeout = 15 * time.Second

// redisPinger adapts a Redis client to the health Pinger.
type redisPinger struct{ c redis.UniversalClient }

func (p redisPinger) PingContext(ctx context.Context) error { return p.c.Ping(ctx).Err() }

// stores holds the process-wide token stores and limiter for one backend.
type stores struct {
	sessions tokenstore.Store[sessiondomain.Session]
	tokens   tokenstore.Store[passworddomain.OneTimeToken]
	limiter  ratelimit.Limiter
	sweep    []tokenstore.Target
	pinger   healthhandler.Pinger
	close    func() error
}

func newStores(cfg *config.Config, log zerolog.Logger) (*stores, error) {
	policy := ratelimit.Policy{MaxAttempts: cfg.LoginMaxAttempts, Lockout: cfg.LoginLockout()}
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set; sessions, tokens and lockouts are kept in process and lost on restart")
		s := tokenstore.NewMemoryStore[sessiondomain.Session]()
		t := tokenstore.NewMemoryStore[passworddomain.OneTimeToken]()
		l := ratelimit.NewMemoryLimiter(policy)
		return &stores{
			sessions: s,
			tokens:   t,
			limiter:  l,
			sweep:    []tokenstore.Target{{Name: "sessions", S: s}, {Name: "one_time_tokens", S: t}, {Name: "lockouts", S: l}},
			close:    func() error { return nil },
		}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	s := tokenstore.NewRedisStore[sessiondomain.Session](client, "dfp:session:")
	t := tokenstore.NewRedisStore[passworddomain.OneTimeToken](client, "dfp:ott:")
	return &stores{
		sessions: s,
		tokens:   t,
		limiter:  ratelimit.NewRedisLimiter(client, "dfp:login:", policy),
		// Redis expires keys itself; the sweep catches entries written without a TTL.
		sweep:  []tokenstore.Target{{Name: "sessions", S: s}, {Name: "one_time_tokens", S: t}},
		pinger: redisPinger{c: client},
		close:  client.Close,
	}, nil
}

func newSender(cfg *config.Config, log zerolog.Logger) (notify.Sender, error) {
	smtp := notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
	if !smtp.Enabled() {
		log.Warn().Msg("SMTP not configured; reset and invite links are only logged")
		return notify.NewLogSender(log), nil
	}
	return notify.NewSMTPSender(smtp)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "json", "dfp-neo-auth")
		boot.Fatal().Err(err).Msg("config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry")
	}
	providers.SetGlobal()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer conn.Close()

	st, err := newStores(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("redis")
	}
	defer func() { _ = st.close() }()

	publishers := []audit.Publisher{otelsetup.NewAuditPublisher(providers.LoggerProvider)}
	kafkaPub := audit.NewKafkaPublisher(cfg.KafkaBrokersList(), cfg.AuditKafkaTopic)
	if kafkaPub != nil {
		publishers = append(publishers, kafkaPub)
		defer func() { _ = kafkaPub.Close() }()
	}
	auditRepo := auditrepo.NewPostgresRepository(conn)
	recorder := audit.NewAsync(audit.NewLogger(auditRepo, middleware.ClientMeta, log, publishers...))

	metrics, err := otelsetup.NewAuthMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatal().Err(err).Msg("metrics")
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	users := userrepo.NewPostgresRepository(conn)
	ids := identity.NewRepositoryStore(users, hasher)
	sessions := sessionsvc.NewManager(st.sessions, st.limiter, ids, recorder, log,
		sessionsvc.WithTTL(cfg.SessionTTL()), sessionsvc.WithObserver(metrics))

	direct, err := newSender(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("notify")
	}
	sender := notify.NewAsync(direct, log)
	lifecycle := passwordsvc.NewLifecycle(st.tokens, users, hasher, sessions, sender, recorder, log, passwordsvc.Config{
		ResetTTL:  cfg.ResetTokenTTL(),
		InviteTTL: cfg.InviteTokenTTL(),
		BaseURL:   cfg.AppBaseURL,
	})

	tokens, err := security.LoadTokenProvider(cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	if err != nil {
		log.Fatal().Err(err).Msg("jwt keys")
	}
	if tokens == nil {
		log.Info().Msg("JWT keys not configured; mobile API disabled")
	}

	authz, err := engine.NewOPAEvaluator(ctx, engine.DefaultRegoPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("policy")
	}

	handler := server.NewRouter(server.Deps{
		Sessions:   sessionhandler.NewHandler(sessions, tokens, log),
		Password:   passwordhandler.NewHandler(lifecycle, cfg.ResetTokenReturnToClient, log),
		Audit:      audithandler.NewHandler(auditRepo, log),
		Health:     healthhandler.NewServer(conn, st.pinger, authz, log),
		Validator:  sessions,
		Tokens:     tokens,
		Authz:      authz,
		Users:      ids,
		Log:        log,
		Instrument: cfg.OTLPEndpoint != "",
	})

	sweeper := tokenstore.NewSweeper(cfg.SweepInterval(), log, st.sweep...)
	sweeper.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("serve")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	sweeper.Stop()
	if !sender.Close(shutdownCtx) {
		log.Warn().Msg("link deliveries still pending at shutdown")
	}
	if !recorder.Close(shutdownCtx) {
		log.Warn().Msg("audit events still pending at shutdown")
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("telemetry shutdown")
	}
	log.Info().Msg("HTTP server stopped")
}
