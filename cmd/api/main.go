package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safar/boutique-store/internal/api"
	"github.com/safar/boutique-store/internal/config"
	"github.com/safar/boutique-store/internal/database"
	"github.com/safar/boutique-store/internal/notify"
	"github.com/safar/boutique-store/internal/session"
	"github.com/safar/boutique-store/internal/shop"
	"github.com/safar/boutique-store/internal/stats"
	"github.com/safar/boutique-store/internal/store"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}
	configureLogger(logger, cfg.Log)
	logger.Info("Starting boutique store...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("connect to database")
	}
	defer db.Close()
	logger.Info("Database connection established.")

	st := store.New(db)

	carts := session.NewCarts()
	go carts.Run(ctx, cfg.Shop.SessionSweepInt, cfg.Shop.SessionCartTTL, logger.WithField("component", "session"))

	notifyLog := logger.WithField("component", "notify")
	var sender notify.Notifier = notify.NewLogNotifier(notifyLog, cfg.Shop.Currency)
	if cfg.SMTP.Enabled() {
		sender = notify.NewMailer(cfg.SMTP, cfg.Shop.Currency)
		logger.Infof("Mail notifications via %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	}
	notifier := notify.NewDispatcher(sender, cfg.Notify.QueueSize, cfg.Notify.Timeout, notifyLog)
	// Outlives ctx so requests drained during shutdown can still enqueue.
	notifyCtx, stopNotify := context.WithCancel(context.Background())
	defer stopNotify()
	go notifier.Run(notifyCtx)

	loc, err := cfg.Shop.Location()
	if err != nil {
		logger.WithError(err).Fatal("resolve time zone")
	}
	agg := stats.New(cfg.Shop.DeliveryFee, cfg.Shop.StatsDays, loc)

	svc := shop.New(st, carts, notifier, agg, logger.WithField("component", "shop"))

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(svc, st, logger)
	router := api.NewRouter(handler, api.IdentityMiddleware(cfg.Shop.SessionCartTTL, logger), logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

func configureLogger(logger *logrus.Logger, cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.Warnf("Invalid LOG_LEVEL '%s', using default: %s", cfg.Level, level)
	}
	logger.SetLevel(level)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
}
