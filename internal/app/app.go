package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vetralabs/vetra/internal/adapters/events"
	"github.com/vetralabs/vetra/internal/adapters/httpapi"
	"github.com/vetralabs/vetra/internal/adapters/ratelimit"
	"github.com/vetralabs/vetra/internal/adapters/responder"
	sqliteadapter "github.com/vetralabs/vetra/internal/adapters/sqlite"
	"github.com/vetralabs/vetra/internal/adapters/sqlite/gormsqlite"
	"github.com/vetralabs/vetra/internal/core/ports"
	"github.com/vetralabs/vetra/internal/core/usecase"
	"github.com/vetralabs/vetra/internal/secrets"
	"github.com/vetralabs/vetra/migrations"
)

type Config struct {
	Addr          string
	DBPath        string
	RedisAddr     string
	PolicyFile    string
	WebhookURL    string
	WebhookSecret string
	EncryptionKey string
	SessionSecret string
	AdminSecret   string
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	db, err := gormsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	keys, err := secrets.Load(cfg.EncryptionKey, cfg.SessionSecret, cfg.AdminSecret)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("load key material: %w", err)
	}
	cipher, err := secrets.NewCipher(keys)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("build audit cipher: %w", err)
	}

	policyCfg, err := usecase.LoadPolicyConfig(cfg.PolicyFile)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	filter, err := usecase.NewPolicyFilter(policyCfg)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	credentialRepo := sqliteadapter.NewCredentialRepository(db)
	auditRepo := sqliteadapter.NewAuditRepository(db)
	userRepo := sqliteadapter.NewUserRepository(db)
	outboxRepo := sqliteadapter.NewAlertOutboxRepository(db)

	credentialService := usecase.NewCredentialService(credentialRepo)
	auditService := usecase.NewAuditService(auditRepo, cipher)
	alertService := usecase.NewAlertService(outboxRepo)
	adminTokenService := usecase.NewAdminTokenService(keys)

	var publisher ports.AlertPublisher = events.NewLogPublisher()
	if cfg.WebhookURL != "" {
		publisher = events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 10*time.Second)
	}
	dispatcher := usecase.NewAlertDispatcher(outboxRepo, publisher, 2*time.Second, 100)
	dispatcher.Start(context.Background())

	gateway := usecase.NewGatewayService(credentialService, filter, auditService, alertService, []usecase.NamedResponder{
		{Name: "vetra", Responder: responder.NewVetra()},
		{Name: "syra", Responder: responder.NewSyra()},
	})

	limiter := newLimiter(ctx, cfg.RedisAddr)

	handler := httpapi.NewHandler(
		gateway,
		credentialService,
		auditService,
		adminTokenService,
		userRepo,
		limiter,
		keys.SessionSecret(),
		httpapi.NewMetrics(),
	)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{dispatcher, db}}, nil
}

// newLimiter prefers Redis so limits hold across replicas. With no
// address configured, or Redis unreachable at startup, it falls back to
// per-process counters.
func newLimiter(ctx context.Context, redisAddr string) ports.RateLimiter {
	if redisAddr == "" {
		return ratelimit.NewInMemory(ratelimit.DefaultWindow)
	}

	client := goredis.NewClient(&goredis.Options{Addr: redisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("redis unreachable at %s, using in-memory rate limiting: %v", redisAddr, err)
		_ = client.Close()
		return ratelimit.NewInMemory(ratelimit.DefaultWindow)
	}
	return ratelimit.NewRedis(client, ratelimit.DefaultWindow)
}
