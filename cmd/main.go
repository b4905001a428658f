package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"price-alert-bot/config"
	"price-alert-bot/internal/alert"
	"price-alert-bot/internal/database"
	"price-alert-bot/internal/metrics"
	"price-alert-bot/internal/notification"
	"price-alert-bot/internal/price"
	"price-alert-bot/internal/telegram"
	"price-alert-bot/lib/retry"
	"price-alert-bot/lib/translation"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

func init() {
	config.InitConfig()
	setupLogging()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("Price alert service stopped: %v", err)
	}
	log.Info("Shut down cleanly")
}

func setupLogging() {
	log.SetLevel(log.InfoLevel)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	if lvl := config.GetString("log_level"); lvl != "" {
		level, err := log.ParseLevel(lvl)
		if err != nil {
			log.Warnf("Unknown log level %q, keeping %s", lvl, log.GetLevel())
		} else {
			log.SetLevel(level)
		}
	}
	log.Debug("Starting price alert service...")
}

func run(ctx context.Context) error {
	translation.Configure("locales", config.GetString("lang"))
	log.Infof("Using %q message catalog", translation.GetLanguage())

	store, err := database.Open(ctx, config.GetString("db_path"))
	if err != nil {
		return errors.Wrap(err, "failed to initialize database")
	}
	defer store.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	if err := m.Load(ctx, store); err != nil {
		log.Warnf("Failed to restore metrics: %v", err)
	}

	prices, err := newPriceProvider(ctx)
	if err != nil {
		return err
	}

	manager := alert.NewManager(store, prices)

	var channels []notification.Channel
	if smtpURL := config.GetString("smtp_url"); smtpURL != "" {
		email, err := notification.NewEmail(smtpURL)
		if err != nil {
			return err
		}
		channels = append(channels, email)
	}

	var bot *telegram.Bot
	if token := config.GetString("telegram_bot_token"); token != "" {
		bot, err = telegram.NewBot(telegram.BotConfig{
			Token:          token,
			Debug:          config.GetBool("debug"),
			UpdatesTimeout: 60,
		}, telegram.NewHandler(manager, store, prices))
		if err != nil {
			return err
		}
		bot.OnCommand = m.CommandHandled
		channels = append(channels, notification.NewTelegram(bot))
	}

	router := notification.NewRouter(channels...)
	if len(router.Channels()) == 0 {
		log.Warn("No notification channel configured, triggered alerts will be flagged as notificationFailed")
	} else {
		log.Infof("Notification channels: %s", strings.Join(router.Channels(), ", "))
	}

	svc := alert.NewService(store, prices, router, alert.NewUserRecipients(store), alert.Config{
		Workers:       config.GetInt("alert_workers"),
		PriceTimeout:  config.GetDuration("price_timeout"),
		NotifyTimeout: config.GetDuration("notify_timeout"),
		Delete: retry.Policy{
			MaxAttempts: config.GetInt("delete_max_attempts"),
			BaseDelay:   config.GetDuration("delete_base_delay"),
		},
	}, nil)

	scheduler, err := alert.NewScheduler(svc, config.GetString("alert_schedule"), m.ObserveCycle)
	if err != nil {
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	if bot != nil {
		go bot.Run(ctx)
	}

	go saveMetricsPeriodically(ctx, m, store, config.GetDuration("metrics_save_interval"))

	server := newMetricsAndHealthServer(config.GetInt("metrics_port"), scheduler)
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Launching metrics and health endpoint on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		err = errors.Wrap(err, "failed to start metrics and health server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Failed to stop metrics server: %v", err)
	}
	scheduler.Stop()

	if err := m.Save(shutdownCtx, store); err != nil {
		log.Errorf("Failed to save metrics: %v", err)
	} else {
		log.Info("Metrics saved, shutting down...")
	}
	return err
}

func newPriceProvider(ctx context.Context) (*price.Cached, error) {
	var source price.Source

	switch provider := strings.ToLower(config.GetString("price_provider")); provider {
	case "finnhub":
		apiKey := config.GetString("finnhub_api_key")
		if apiKey == "" {
			return nil, errors.New("FINNHUB_API_KEY is required for the finnhub price provider")
		}
		source = price.NewFinnhub(config.GetString("finnhub_base_url"), apiKey, config.GetDuration("price_timeout"))
	case "coinpaprika", "paprika":
		client := price.NewPaprikaClient(config.GetString("api_pro_key"))
		paprika := price.NewPaprika(price.TickerListFunc(client.Tickers.List))

		interval := config.GetDuration("price_refresh_interval")
		if interval <= 0 {
			interval = time.Minute
		}
		paprika.Start(ctx, interval)
		source = paprika
	default:
		return nil, errors.Errorf("unknown price provider %q", provider)
	}

	ttl := config.GetDuration("price_cache_ttl")
	if ttl <= 0 {
		ttl = time.Minute
	}
	return price.NewCached(source, ttl), nil
}

func saveMetricsPeriodically(ctx context.Context, m *metrics.Metrics, store metrics.Store, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Save(ctx, store); err != nil {
				log.Errorf("Failed to save metrics: %v", err)
			}
		}
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func cycleHandler(scheduler *alert.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		if scheduler.Trigger() {
			w.Write([]byte("cycle scheduled"))
			return
		}
		w.Write([]byte("cycle already pending"))
	}
}

func newMetricsAndHealthServer(port int, scheduler *alert.Scheduler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthCheckHandler)
	mux.Handle("/cycle", cycleHandler(scheduler))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
