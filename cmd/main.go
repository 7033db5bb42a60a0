package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/auth"
	"github.com/markjakearzadon/realestate-gobackend/internal/config"
	"github.com/markjakearzadon/realestate-gobackend/internal/db"
	"github.com/markjakearzadon/realestate-gobackend/internal/handlers"
	"github.com/markjakearzadon/realestate-gobackend/internal/mail"
	"github.com/markjakearzadon/realestate-gobackend/internal/metrics"
	"github.com/markjakearzadon/realestate-gobackend/internal/payments"
	"github.com/markjakearzadon/realestate-gobackend/internal/services"
	"github.com/markjakearzadon/realestate-gobackend/internal/subscription"
	"github.com/markjakearzadon/realestate-gobackend/internal/uploads"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run() error {
	cfg, err := config.Load()
	var envErr *config.EnvFileError
	if err != nil && !errors.As(err, &envErr) {
		return err
	}

	logger, lerr := newLogger(cfg != nil && cfg.Production())
	if lerr != nil {
		return fmt.Errorf("failed to build logger: %w", lerr)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	log := logger.Sugar()
	if envErr != nil {
		log.Warnf("Warning: %v", envErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			log.Errorf("Error disconnecting from MongoDB: %v", err)
		}
	}()
	log.Info("Successfully connected to MongoDB")

	database := client.Database(cfg.DBName)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer rdb.Close()
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = rdb.Ping(pctx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("failed to ping redis at %s: %w", cfg.RedisAddr, err)
	}

	userService := services.NewUserService(database, log)
	propertyService := services.NewPropertyService(database, log)
	tourService := services.NewTourService(database, log)
	messageService := services.NewMessageService(database, log)
	reviewService := services.NewReviewService(database, log)

	var mailer mail.Mailer = mail.NewLogMailer(log)
	if cfg.MailjetAPIKey != "" && cfg.MailjetSecretKey != "" {
		mailer = mail.NewMailjetMailer(cfg.MailjetAPIKey, cfg.MailjetSecretKey, cfg.MailFrom, cfg.MailFromName)
	} else {
		log.Warn("Mailjet keys not set; outgoing mail is only logged")
	}
	dispatcher := mail.NewDispatcher(mailer, log)

	images, err := uploads.NewStore(cfg.UploadDir)
	if err != nil {
		return err
	}
	m := metrics.New()

	// Reminder job
	reminder := subscription.NewReminder(userService, dispatcher, log,
		subscription.WithObserver(func(res subscription.Result) {
			m.ReminderRun(res.Deactivated, res.Reminded, res.Failed)
		}),
	)
	scheduler := cron.New()
	if _, err := reminder.Schedule(scheduler, cfg.ReminderSchedule); err != nil {
		return err
	}
	scheduler.Start()

	router := handlers.NewRouter(&handlers.Dependencies{
		Users:         userService,
		Properties:    propertyService,
		Tours:         tourService,
		Messages:      messageService,
		Reviews:       reviewService,
		Tokens:        auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		Refresh:       auth.NewRedisRefreshStore(rdb),
		Mail:          dispatcher,
		Images:        images,
		Gateway:       payments.NewStripeGateway(cfg.StripeSecretKey, cfg.SubscriptionPriceCents),
		Events:        payments.NewProcessor(userService, dispatcher, log),
		Metrics:       m,
		Log:           log,
		FrontendURL:   cfg.FrontendURL,
		WebhookSecret: cfg.StripeWebhookSecret,
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		log.Errorf("HTTP shutdown: %v", err)
	}
	<-scheduler.Stop().Done()
	dispatcher.Wait()
	return nil
}
