package main

import (
	"context"
	"encoding/json"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventstoday/internal/api"
	"eventstoday/internal/cache"
	"eventstoday/internal/capture"
	"eventstoday/internal/config"
	"eventstoday/internal/fetch"
	"eventstoday/internal/ics"
	appLog "eventstoday/internal/log"
	"eventstoday/internal/refresh"
	"eventstoday/internal/today"
	"eventstoday/internal/web"
)

type flagConfig struct {
	configPath  string
	listen      string
	once        bool
	capturePath string
	preview     bool
	debug       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
		conf.Cache.Dir = "./cache/upstream"
		conf.PreviewPath = "./cache/preview.png"
	}

	appLog.Info("eventstoday starting",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"source", conf.Source.Kind,
		"refresh", conf.RefreshCron,
		"cache_ttl", conf.CacheTTL().String(),
		"redis", conf.Cache.RedisURL != "",
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := buildStore(ctx, conf)
	defer closeStore()

	schedule := today.ScheduleFromConfig(conf.Fallback)
	svc := today.NewService(buildSource(conf), store, today.Options{
		Location:         conf.Location(),
		LimitedThreshold: conf.Display.LimitedThreshold,
		CacheTTL:         conf.CacheTTL(),
		Schedule:         &schedule,
	})

	if flags.once {
		os.Exit(runOnce(ctx, conf, svc, flags.capturePath))
	}

	job := &refresh.Job{Events: svc}
	if flags.preview {
		job.Capture = previewCapture(conf, conf.PreviewPath)
	}
	if _, err := refresh.Start(ctx, conf.RefreshCron, job); err != nil {
		appLog.Error("failed to start refresh scheduler", err)
		os.Exit(1)
	}
	// Warm the cache before the first visitor; the first capture waits for cron.
	go func() { _ = job.Warm(ctx) }()

	if err := web.Run(ctx, conf, svc); err != nil {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}
	appLog.Info("eventstoday exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/eventstoday/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch today's events once, print the view as JSON and exit")
	flag.StringVar(&cfg.capturePath, "capture", "", "With -once: also write a PNG screenshot of the page to this path")
	flag.BoolVar(&cfg.preview, "preview", false, "Re-capture the preview screenshot after each scheduled refresh")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging and ./cache paths")

	flag.Parse()

	return cfg
}

func buildSource(conf *config.Config) today.Source {
	f := fetch.New(conf.Cache.Dir, conf.SourceTimeout())

	switch conf.Source.Kind {
	case config.SourceICS:
		if conf.Source.ICSURL == "" {
			appLog.Warn("ics source selected but ics_url is empty")
			return nil
		}
		// A whole calendar stays valid, so a stale copy beats an outage.
		f.StaleOnError = true
		return ics.NewSource(conf.Source.ICSURL, f, conf.Location())
	default:
		if conf.Source.APIURL == "" {
			appLog.Warn("api source selected but api_url is empty")
			return nil
		}
		return api.NewClient(conf.Source.APIURL, conf.Source.APIKey, f)
	}
}

// buildStore prefers Redis when configured and reachable, else process memory.
func buildStore(ctx context.Context, conf *config.Config) (cache.Store, func()) {
	if conf.Cache.RedisURL == "" {
		return cache.NewMemory(), func() {}
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	r, err := cache.DialRedis(dialCtx, conf.Cache.RedisURL)
	if err != nil {
		appLog.Error("redis unavailable, using in-memory cache", err)
		return cache.NewMemory(), func() {}
	}
	return r, func() { _ = r.Close() }
}

func previewCapture(conf *config.Config, out string) func(context.Context) error {
	opts := capture.Options{
		URL:        "http://" + conf.Listen + "/",
		OutputPath: out,
	}
	if conf.BasicAuth != nil {
		opts.Username = conf.BasicAuth.Username
		opts.Password = conf.BasicAuth.Password
	}
	return func(ctx context.Context) error {
		return capture.PagePNG(ctx, opts)
	}
}

// waitForListener polls addr until it accepts connections or ctx is done.
func waitForListener(ctx context.Context, addr string) error {
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn.Close()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// runOnce prints the current view and optionally captures the page.
// It returns the process exit code.
func runOnce(ctx context.Context, conf *config.Config, svc *today.Service, capturePath string) int {
	v := svc.Load(ctx, 0)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(struct {
		State   today.State   `json:"state"`
		Content today.Content `json:"content"`
		Date    string        `json:"date"`
		Events  any           `json:"events"`
	}{v.State, v.Content, v.Date, v.Events}); err != nil {
		appLog.Error("failed to print view", err)
		return 1
	}

	if capturePath != "" {
		srvCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- web.Run(srvCtx, conf, svc) }()

		waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
		err := waitForListener(waitCtx, conf.Listen)
		waitCancel()
		if err == nil {
			err = previewCapture(conf, capturePath)(ctx)
		}
		cancel()
		<-done

		if err != nil {
			appLog.Error("capture failed", err, "path", capturePath)
			return 1
		}
		appLog.Info("preview written", "path", capturePath)
	}

	if v.State == today.StateError {
		return 1
	}
	return 0
}
