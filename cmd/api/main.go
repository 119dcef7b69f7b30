package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"supportdesk/internal/auth"
	"supportdesk/internal/calls"
	"supportdesk/internal/config"
	"supportdesk/internal/gateway"
	"supportdesk/internal/httpapi"
	"supportdesk/internal/lifecycle"
	"supportdesk/internal/messages"
	"supportdesk/internal/notify"
	"supportdesk/internal/queries"
	"supportdesk/internal/reporting"
	"supportdesk/internal/rooms"
	"supportdesk/internal/sweeper"
	"supportdesk/pkg/logger"
	"supportdesk/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	hub := gateway.NewHub(log)

	var push notify.Dispatcher = notify.NewLogDispatcher("push", log)
	if cfg.Notify.FCMKey != "" {
		push = notify.NewFCMDispatcher(cfg.Notify)
	}
	var email notify.Dispatcher = notify.NewLogDispatcher("email", log)
	if cfg.Notify.SMTPHost != "" {
		email = notify.NewEmailDispatcher(cfg.Notify)
	}

	orc, err := lifecycle.NewOrchestrator(lifecycle.Deps{
		Queries:      queries.NewPostgresStore(db),
		Messages:     messages.NewPostgresStore(db),
		Sessions:     calls.NewPostgresSessionStore(db),
		Requests:     calls.NewPostgresRequestStore(db),
		Agents:       lifecycle.NewPostgresDirectory(db),
		Rooms:        rooms.NewHTTPProvider(cfg.Rooms),
		Cast:         hub,
		Push:         push,
		Email:        email,
		Locks:        utils.NewQueryLocker(rdb, 30*time.Second),
		Tx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return utils.RunInTx(ctx, db, fn)
		},
		Log:          log,
		RoomLifetime: cfg.Rooms.RoomLifetime,
	})
	if err != nil {
		log.Error("orchestrator init failed", "err", err)
		os.Exit(1)
	}

	sw := sweeper.New(orc, cfg.Sweeper, log)
	sw.Start()
	defer sw.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, httpapi.Handlers{
		Auth:     authManager,
		Orc:      orc,
		Queries:  queries.NewPostgresStore(db),
		Messages: messages.NewPostgresStore(db),
		Sessions: calls.NewPostgresSessionStore(db),
		Requests: calls.NewPostgresRequestStore(db),
		Reports:  reporting.NewService(reporting.NewPostgresRepo(db)),
	}, hub, authManager)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	hub.Shutdown()

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
