package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tallyops/cutlog/internal/config"
	"github.com/tallyops/cutlog/internal/event"
	"github.com/tallyops/cutlog/internal/feed"
	"github.com/tallyops/cutlog/internal/logging"
	"github.com/tallyops/cutlog/internal/observability"
	"github.com/tallyops/cutlog/internal/rosstalk"
	"github.com/tallyops/cutlog/internal/switcher"
	"github.com/tallyops/cutlog/internal/timeline"
	"github.com/tallyops/cutlog/internal/tsl"
	"github.com/tallyops/cutlog/internal/xmeml"
)

func main() {
	configPath := flag.String("config", "cutlog.toml", "session configuration file")
	outPath := flag.String("out", "", "override the configured timeline output path")
	flag.Parse()

	log := logging.Init("cutlogd")
	app, err := newApp(*configPath, *outPath, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cutlogd: %v\n", err)
		os.Exit(1)
	}
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "cutlogd: %v\n", err)
		os.Exit(1)
	}
}

// app owns the session lifecycle: intake runs until a shutdown signal,
// then the collected events are reconstructed and written out once.
type app struct {
	configPath string
	outPath    string
	log        zerolog.Logger
	store      *event.Store
	state      *switcher.State
	feed       *feed.Server

	mu  sync.Mutex
	cfg config.Config
}

func newApp(configPath, outPath string, log zerolog.Logger) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if outPath == "" {
		outPath = cfg.Session.OutputPath
	}
	return &app{
		configPath: configPath,
		outPath:    outPath,
		log:        log,
		store:      event.NewStore(),
		state:      switcher.NewState(),
		feed:       feed.NewServer(log),
		cfg:        cfg,
	}, nil
}

func (a *app) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := a.config()
	a.log.Info().
		Str("session", cfg.Session.Name).
		Float64("frame_rate", cfg.Session.FrameRate).
		Str("tsl", cfg.TSL.ListenAddr).
		Msg("session starting")

	var wg sync.WaitGroup

	decoder := tsl.NewDecoder(a.state, a.record, tsl.DefaultConfig(), a.log)
	listener := tsl.NewListener(cfg.TSL.ListenAddr, decoder, a.log)
	errc := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Run(ctx); err != nil {
			errc <- err
			stop()
		}
	}()

	if cfg.RossTalk.Enabled {
		client := rosstalk.NewClient(rosstalk.Config{Addr: cfg.RossTalk.Addr}, a.record, a.log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := client.Run(ctx); err != nil {
				a.log.Error().Err(err).Msg("rosstalk client stopped")
			}
		}()
	}

	var feedSrv *http.Server
	if cfg.Feed.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/events", a.feed)
		mux.Handle("/metrics", observability.Handler())
		feedSrv = &http.Server{Addr: cfg.Feed.ListenAddr, Handler: mux}
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.log.Info().Str("addr", cfg.Feed.ListenAddr).Msg("event feed up")
			if err := feedSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Error().Err(err).Msg("event feed stopped")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := config.Watch(ctx, a.configPath, a.reload, a.log); err != nil {
			a.log.Warn().Err(err).Msg("config watch unavailable")
		}
	}()

	<-ctx.Done()
	a.log.Info().Int("events", a.store.Len()).Msg("session ending")

	if feedSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		feedSrv.Shutdown(shutdownCtx)
		cancel()
	}
	listener.Close()
	wg.Wait()

	select {
	case err := <-errc:
		return err
	default:
	}
	return a.export()
}

// record is the single sink for every protocol decoder.
func (a *app) record(e event.Event) {
	a.store.Append(e)
	observability.RecordEvent(string(e.Type))
	a.feed.Publish(e)
}

func (a *app) config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// reload swaps in a rewritten config file. Listen addresses are fixed for
// the life of the session; only the session and mapping tables take effect.
func (a *app) reload(cfg config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	a.log.Info().
		Str("session", cfg.Session.Name).
		Int("cameras", len(cfg.Cameras)).
		Int("keyers", len(cfg.Keyers)).
		Msg("configuration reloaded")
}

func (a *app) export() error {
	events := a.store.List()
	if len(events) == 0 {
		a.log.Warn().Msg("no events recorded, skipping timeline export")
		return nil
	}
	first, last, _ := a.store.Span()

	cfg := a.config()
	settings := cfg.Settings()
	settings.SessionStart = first
	settings.SessionEnd = last

	rec, err := timeline.Build(events, settings, a.log)
	if err != nil {
		return fmt.Errorf("timeline build: %w", err)
	}
	out, err := xmeml.Serialize(rec, settings)
	if err != nil {
		return fmt.Errorf("timeline serialize: %w", err)
	}
	if err := os.WriteFile(a.outPath, out, 0o644); err != nil {
		return fmt.Errorf("timeline write: %w", err)
	}
	a.log.Info().
		Str("path", a.outPath).
		Int("segments", len(rec.Program)).
		Int("markers", len(rec.Markers)).
		Msg("timeline written")
	return nil
}
