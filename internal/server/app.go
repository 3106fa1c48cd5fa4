// Package server assembles and runs the application: it selects storage,
// blob, mail and rate-limit backends from configuration, wires them into
// the controller and serves the dispatch endpoint until shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dmitrijs2005/keyvault/internal/logging"
	"github.com/dmitrijs2005/keyvault/internal/server/blob"
	"github.com/dmitrijs2005/keyvault/internal/server/config"
	"github.com/dmitrijs2005/keyvault/internal/server/controller"
	"github.com/dmitrijs2005/keyvault/internal/server/limiter"
	"github.com/dmitrijs2005/keyvault/internal/server/mail"
	"github.com/dmitrijs2005/keyvault/internal/server/models"
	"github.com/dmitrijs2005/keyvault/internal/server/rpc"
	"github.com/dmitrijs2005/keyvault/internal/server/storage"
	"github.com/dmitrijs2005/keyvault/internal/server/verification"
	"github.com/redis/go-redis/v9"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	server  *rpc.Server
	cleanup []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	app := &App{config: c, logger: logger}

	st, blobs, mailer, err := app.initBackends(ctx)
	if err != nil {
		return nil, err
	}

	var lim verification.RequestLimiter
	if c.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		app.cleanup = append(app.cleanup, client.Close)
		lim = limiter.New(client, c.VerificationRateLimit, c.VerificationRateWindow)
	}

	verifier := verification.NewEngine(st, mailer, lim, []byte(c.SecretKey), c.VerificationTokenValidity)

	ctrl := controller.New(controller.Params{
		Storage:         st,
		Blobs:           blobs,
		Mailer:          mailer,
		Verification:    verifier,
		Logger:          logger,
		SessionValidity: c.SessionValidity,
		PendingAuthTTL:  c.PendingAuthTTL,
		AccountQuota:    models.AccountQuota{Orgs: c.AccountOrgs, Storage: c.AccountStorage},
		OrgQuota: models.OrgQuota{
			Members: c.OrgMembers,
			Groups:  c.OrgGroups,
			Vaults:  c.OrgVaults,
			Storage: c.OrgStorage,
		},
	})

	app.server = rpc.NewServer(c.EndpointAddr, rpc.NewDispatcher(ctrl, logger), logger)
	return app, nil
}

// initBackends picks the persistence stack. An empty DSN selects the
// in-memory backends for all three ports, which is the development mode;
// with a DSN the server runs on Postgres, S3 and SMTP.
func (app *App) initBackends(ctx context.Context) (storage.Storage, blob.Store, mail.Sender, error) {
	c := app.config

	if c.DatabaseDSN == "" {
		app.logger.Info(ctx, "no database DSN, using in-memory backends")
		return storage.NewMemoryStorage(), blob.NewMemoryStore(), mail.NewMemorySender(), nil
	}

	st, err := storage.NewPostgresStorage(c.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("db init error: %w", err)
	}
	app.cleanup = append(app.cleanup, st.Close)

	if err := st.RunMigrations(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("db migration error: %w", err)
	}

	blobs, err := blob.NewS3Store(ctx, blob.S3Config{
		Region:       c.S3Region,
		User:         c.S3RootUser,
		Password:     c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("blob store init error: %w", err)
	}

	host, portStr, err := net.SplitHostPort(c.SMTPAddr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid smtp address %q: %w", c.SMTPAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid smtp port %q: %w", portStr, err)
	}
	mailer := mail.NewSMTPSender(host, port, c.SMTPUser, c.SMTPPassword, c.SMTPFrom)

	return st, blobs, mailer, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, "server error", "error", err)
	}

	for _, fn := range app.cleanup {
		if err := fn(); err != nil {
			app.logger.Error(ctx, "cleanup error", "error", err)
		}
	}
}
