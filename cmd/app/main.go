package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/vetralabs/vetra/internal/app"
	"github.com/vetralabs/vetra/internal/core/usecase"
	"github.com/vetralabs/vetra/internal/secrets"
)

func main() {
	cmd := &cli.Command{
		Name:  "vetra",
		Usage: "Gated AI API with key issuance, content policy and encrypted audit",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":8080",
				Usage: "HTTP listen address",
			},
			&cli.StringFlag{
				Name:  "db-path",
				Value: "./vetra.sqlite",
				Usage: "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Sources: cli.EnvVars("VETRA_REDIS_ADDR"),
				Usage:   "Redis address for shared rate limiting (empty uses in-process counters)",
			},
			&cli.StringFlag{
				Name:    "policy-file",
				Sources: cli.EnvVars("VETRA_POLICY_FILE"),
				Usage:   "YAML content policy file (empty uses built-in defaults)",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("VETRA_WEBHOOK_URL"),
				Usage:   "Security alert webhook target URL (empty logs alerts locally)",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("VETRA_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound alert webhooks",
			},
			&cli.StringFlag{
				Name:    "encryption-key",
				Sources: cli.EnvVars("VETRA_ENCRYPTION_KEY"),
				Usage:   "base64url 32-byte key for audit metadata encryption",
			},
			&cli.StringFlag{
				Name:    "session-secret",
				Sources: cli.EnvVars("VETRA_APP_SECRET"),
				Usage:   "Signing secret for registration session cookies",
			},
			&cli.StringFlag{
				Name:    "admin-secret",
				Sources: cli.EnvVars("VETRA_ADMIN_SECRET"),
				Usage:   "Signing secret for admin tokens",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:  "mint-admin-token",
				Usage: "Print a short-lived admin token for the given subject",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "subject",
						Value: "operator",
						Usage: "Subject claim embedded in the token",
					},
					&cli.StringFlag{
						Name:    "admin-secret",
						Sources: cli.EnvVars("VETRA_ADMIN_SECRET"),
						Usage:   "Signing secret for admin tokens",
					},
				},
				Action: mintAdminToken,
			},
			{
				Name:   "new-encryption-key",
				Usage:  "Print a freshly generated audit encryption key",
				Action: newEncryptionKey,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(ctx context.Context, c *cli.Command) error {
	cfg := app.Config{
		Addr:          c.String("addr"),
		DBPath:        c.String("db-path"),
		RedisAddr:     c.String("redis-addr"),
		PolicyFile:    c.String("policy-file"),
		WebhookURL:    c.String("webhook-url"),
		WebhookSecret: c.String("webhook-secret"),
		EncryptionKey: c.String("encryption-key"),
		SessionSecret: c.String("session-secret"),
		AdminSecret:   c.String("admin-secret"),
	}

	server, closer, err := app.NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			log.Printf("close resources: %v", closeErr)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case sig := <-sigCh:
		log.Printf("received signal %s", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func mintAdminToken(_ context.Context, c *cli.Command) error {
	secret := c.String("admin-secret")
	if secret == "" {
		return errors.New("admin secret required (flag --admin-secret or VETRA_ADMIN_SECRET)")
	}
	keys, err := secrets.Load("", "", secret)
	if err != nil {
		return err
	}
	token, err := usecase.NewAdminTokenService(keys).Mint(c.String("subject"))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func newEncryptionKey(_ context.Context, _ *cli.Command) error {
	fmt.Println(secrets.NewEncryptionKey())
	return nil
}
