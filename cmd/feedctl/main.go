package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tablebook/internal/config"
	"tablebook/internal/events"
	"tablebook/internal/export"
	"tablebook/internal/feed"
	"tablebook/internal/metrics"
	"tablebook/internal/models"
	"tablebook/internal/reservationapi"
)

func main() {
	_ = godotenv.Load()

	search := flag.String("search", "", "filter by name or phone")
	date := flag.String("date", "", "only reservations on this day (YYYY-MM-DD)")
	pages := flag.Int("pages", 1, "number of pages to load")
	id := flag.String("id", "", "reservation to update with -status")
	statusName := flag.String("status", "", "new status for -id (confirmed or cancelled)")
	exportPath := flag.String("export", "", "write the feed to this .xlsx file")
	exportDir := flag.String("export-dir", "", "write the feed to a dated .xlsx file in this directory")
	flag.Parse()

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("TABLEBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = logger.Level(cfg.LogLevel())

	var status models.ReservationStatus
	if *id != "" {
		if status, err = models.ParseStatus(*statusName); err != nil {
			logger.Fatal().Err(err).Str("status", *statusName).Msg("invalid -status")
		}
	}
	if *exportPath == "" && *exportDir != "" {
		*exportPath = filepath.Join(*exportDir, export.Filename(time.Now()))
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	client := reservationapi.NewClient(cfg.API.BaseURL, cfg.API.APIKey, cfg.APITimeout(), loc, &logger)
	client.UseRateLimit(cfg.API.RatePerSecond, cfg.API.Burst)
	retry := reservationapi.DefaultRetryConfig()
	retry.MaxRetries = cfg.API.MaxRetries
	client.SetRetry(retry)

	if cfg.Redis.Address != "" && cfg.CacheTTL() > 0 {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		client.UseRedisCache(rdb, cfg.CacheTTL())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	bus := events.NewEventBus()
	bus.Subscribe(events.TypeFeedError, func(ev events.Event) error {
		var p events.FeedError
		if err := ev.Decode(&p); err != nil {
			return err
		}
		logger.Warn().Str("op", p.Op).Msg(p.Message)
		return nil
	})
	bus.Subscribe(events.TypeStatusChanged, func(ev events.Event) error {
		var p events.StatusChanged
		if err := ev.Decode(&p); err != nil {
			return err
		}
		logger.Info().Str("id", p.ID).Str("status", models.ReservationStatus(p.Status).String()).Msg("status changed")
		return nil
	})

	ctrl := feed.NewController(client, client, bus, feed.Config{
		PageSize:       cfg.Feed.PageSize,
		DebounceWindow: cfg.DebounceWindow(),
		Location:       loc,
	}, &logger)
	defer ctrl.Close()

	patch := models.FilterPatch{}
	if *search != "" {
		patch.SearchQuery = search
	}
	if *date != "" {
		day, err := time.ParseInLocation(models.DateLayout, *date, loc)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid -date")
		}
		patch.SelectedDate = &day
	}

	ctxPing, cancelPing := context.WithTimeout(ctx, cfg.APITimeout())
	if err := client.HealthCheck(ctxPing); err != nil {
		logger.Warn().Err(err).Msg("reservations api health check failed")
	}
	cancelPing()

	// The first filter application loads right away.
	if err := ctrl.SetFilter(ctx, patch); err != nil {
		logger.Fatal().Err(err).Msg("initial load failed")
	}
	for i := 1; i < *pages && ctrl.PageState().HasNextPage && ctx.Err() == nil; i++ {
		if err := ctrl.LoadMore(ctx); err != nil {
			logger.Error().Err(err).Msg("load more failed")
			break
		}
	}

	if *id != "" {
		if err := ctrl.UpdateStatus(ctx, *id, status); err != nil {
			logger.Error().Err(err).Str("id", *id).Str("status", status.String()).Msg("status update failed")
		}
	}

	snap := ctrl.Snapshot()
	printFeed(os.Stdout, snap, loc)

	if *exportPath != "" {
		if err := writeExport(*exportPath, snap, loc); err != nil {
			logger.Error().Err(err).Str("path", *exportPath).Msg("export failed")
		} else {
			logger.Info().Str("path", *exportPath).Msg("feed exported")
		}
	}

	if cfg.Monitoring.PrometheusEnabled {
		logger.Info().Int("port", cfg.Monitoring.PrometheusPort).Msg("serving metrics until interrupted")
		<-ctx.Done()
	}
}

func printFeed(w io.Writer, snap feed.Snapshot, loc *time.Location) {
	fmt.Fprintf(w, "today: %d  pending: %d  confirmed: %d  guests today: %d\n",
		snap.Stats.TodayCount, snap.Stats.PendingCount, snap.Stats.ConfirmedCount, snap.Stats.TotalGuestsToday)
	fmt.Fprintf(w, "loaded page %d, %d total, more: %t\n\n", snap.Page.CurrentPage, snap.Page.Total, snap.Page.HasNextPage)

	for _, item := range snap.Items {
		switch it := item.(type) {
		case feed.Header:
			fmt.Fprintf(w, "== %s  (%d, %d pending)\n", it.Date, it.Count, it.PendingCount)
		case feed.Row:
			r := it.Reservation
			fmt.Fprintf(w, "  %s  %-24s %2d guests  %-9s  #%s\n",
				r.ReserveTime.In(loc).Format("15:04"), r.ContactName, r.Guests, r.Status, r.ID)
		}
	}
	if snap.Err != "" {
		fmt.Fprintf(w, "\nerror: %s\n", snap.Err)
	}
}

func writeExport(path string, snap feed.Snapshot, loc *time.Location) error {
	w := export.NewExcelizeWriter()
	defer w.Close()
	if err := export.WriteFeed(w, snap.Items, snap.Stats, loc); err != nil {
		return err
	}
	return w.SaveToFile(path)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
