package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/router-for-me/BizCardCloud/internal/billing"
	"github.com/router-for-me/BizCardCloud/internal/config"
	"github.com/router-for-me/BizCardCloud/internal/db"
	"github.com/router-for-me/BizCardCloud/internal/gateway"
	"github.com/router-for-me/BizCardCloud/internal/http/api"
	"github.com/router-for-me/BizCardCloud/internal/http/api/admin"
	"github.com/router-for-me/BizCardCloud/internal/http/api/front"
	"github.com/router-for-me/BizCardCloud/internal/logging"
	"github.com/router-for-me/BizCardCloud/internal/pending"
	"github.com/router-for-me/BizCardCloud/internal/ratelimit"
	"github.com/router-for-me/BizCardCloud/internal/redisconn"
	"github.com/router-for-me/BizCardCloud/internal/security"
	"github.com/router-for-me/BizCardCloud/internal/store"
	"github.com/router-for-me/BizCardCloud/internal/tenant"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Migrate opens the configured database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	dsn, err := config.LoadDatabaseDSN(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return err
	}
	conn, err := db.OpenContext(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := db.Close(conn); errClose != nil {
			log.WithError(errClose).Warn("migrate: close database")
		}
	}()
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	log.WithField("dsn", describeDSN(dsn)).Info("migrate: database schema up to date")
	return nil
}

// runtime holds the long-lived services behind the HTTP API.
type runtime struct {
	store   store.Storage
	redis   *redisconn.Conn
	sweeper *billing.ExpirySweeper
	deps    api.Deps
}

func newRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		secret, errSecret := security.GenerateRandomString(32)
		if errSecret != nil {
			return nil, fmt.Errorf("app: generate jwt secret: %w", errSecret)
		}
		cfg.JWT.Secret = secret
		log.Warn("jwt secret not configured; generated an ephemeral one, admin sessions end on restart")
	}

	s, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gw := gateway.NewClient(cfg.Payment)
	if !gw.Configured() {
		log.Warn("payment gateway credentials missing; subscription checkout is disabled")
	}
	redisConn := redisconn.New(cfg.Pending, nil, nil)
	pendingPayments := pending.NewManager(cfg.Pending, redisConn, nil)
	limiter := ratelimit.NewManager(ratelimit.SettingsFromConfig(cfg), redisConn, nil)

	return &runtime{
		store:   s,
		redis:   redisConn,
		sweeper: billing.NewExpirySweeper(s, cfg.Expiry.Schedule),
		deps: api.Deps{
			Store:         s,
			Tenants:       tenant.NewService(s, cfg.JWT),
			Subscriptions: billing.NewSubscriptionManager(s, gw, pendingPayments),
			Reconciler:    billing.NewWebhookReconciler(s, gw, pendingPayments),
			Limiter:       limiter,
		},
	}, nil
}

func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	if errRedis := rt.redis.Close(); errRedis != nil {
		log.WithError(errRedis).Warn("app: close redis")
	}
	if errStore := rt.store.Close(); errStore != nil {
		log.WithError(errStore).Warn("app: close storage")
	}
}

// newEngine builds the gin engine serving the admin and public APIs.
func newEngine(cfg config.Config, deps api.Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), logging.GinLogger(), corsMiddleware(cfg.Server.AllowedOrigins))
	admin.RegisterAdminRoutes(engine, deps)
	front.RegisterFrontRoutes(engine, deps)
	return engine
}

// corsMiddleware allows the card frontend to call the API. An empty origin list allows any origin.
func corsMiddleware(origins []string) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", tenant.HeaderTenantID, "X-Signature"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        24 * time.Hour,
	}
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" || trimmed == "*" {
			continue
		}
		if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
			log.WithField("origin", trimmed).Warn("cors: ignoring origin without http(s) scheme")
			continue
		}
		corsCfg.AllowOrigins = append(corsCfg.AllowOrigins, trimmed)
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	}
	return cors.New(corsCfg)
}

// RunServer loads the config, opens storage and serves the HTTP API until ctx is done.
// A positive port overrides server.port from the config file.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	appCfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logCloser, err := logging.Setup(appCfg.Logging)
	if err != nil {
		return err
	}
	defer func() {
		_ = logCloser.Close()
	}()
	if port > 0 {
		appCfg.Server.Port = port
	}

	rt, err := newRuntime(ctx, appCfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if hasTenants, errState := HasTenants(ctx, rt.store); errState != nil {
		log.WithError(errState).Warn("app: check tenants")
	} else if !hasTenants {
		log.Info("no companies registered yet; sign up via POST /v0/tenants/signup")
	}

	if errSweeper := rt.sweeper.Start(ctx); errSweeper != nil {
		return errSweeper
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", appCfg.Server.Port),
		Handler:           newEngine(appCfg, rt.deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr":    srv.Addr,
			"config":  configPath,
			"storage": rt.store.Backend(),
		}).Info("starting server")
		if errServe := srv.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
		close(errCh)
	}()

	select {
	case errServe, ok := <-errCh:
		if ok {
			return fmt.Errorf("app: serve: %w", errServe)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("app: shutdown: %w", errShutdown)
	}
	return nil
}
