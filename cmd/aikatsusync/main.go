package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/classify"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/config"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/export"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/gcal"
	appLog "github.com/megane2501h/Aikatsu-academy-Schedule/internal/log"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/model"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/scrape"
	enginesync "github.com/megane2501h/Aikatsu-academy-Schedule/internal/sync"
	"github.com/megane2501h/Aikatsu-academy-Schedule/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	scrapeOnly bool
	dumpICS    string
	setup      bool
	debug      bool
}

// app wires the pipeline together for one process.
type app struct {
	cfg        *config.Config
	loc        *time.Location
	fetcher    *scrape.Fetcher
	classifier *classify.Classifier
	status     *web.Server
}

func main() {
	flags := parseFlags()

	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("aikatsusync starting", "version", "1.0.0")

	if flags.setup {
		if err := config.Save(flags.configPath, config.DefaultConfig()); err != nil {
			appLog.Error("failed to write default config", err, "config_path", flags.configPath)
			os.Exit(1)
		}
		fmt.Printf("wrote default config to %s; edit calendar.calendar_id before syncing\n", flags.configPath)
		return
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"target_url", conf.TargetURL,
		"timezone", conf.Timezone,
		"sync_cron", conf.SyncCron,
		"render_js", conf.RenderJS,
		"listen", conf.Listen,
		"once", flags.once,
		"scrape_only", flags.scrapeOnly,
	)

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	classifier, err := classify.New(conf.Classify, conf.FallbackURL)
	if err != nil {
		appLog.Error("invalid classification config", err)
		os.Exit(1)
	}

	a := &app{
		cfg:        conf,
		loc:        loc,
		fetcher:    scrape.NewFetcher(conf.CacheDir),
		classifier: classifier,
		status:     web.NewServer(),
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if conf.Listen != "" {
		go func() {
			if err := a.status.Start(ctx, conf.Listen); err != nil {
				appLog.Error("status server failed", err, "listen", conf.Listen)
			}
		}()
	}

	switch {
	case flags.scrapeOnly:
		if err := a.runScrapeOnly(ctx, flags.dumpICS); err != nil {
			os.Exit(1)
		}
	case flags.once:
		if !a.runSync(ctx, flags.dumpICS) {
			os.Exit(1)
		}
	default:
		a.runAutomatic(ctx, flags.dumpICS)
	}

	appLog.Info("aikatsusync exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "Status HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one scrape+sync cycle and exit")
	flag.BoolVar(&cfg.scrapeOnly, "scrape-only", false, "Scrape and print records as JSON; do not touch the calendar")
	flag.StringVar(&cfg.dumpICS, "dump-ics", "", "Also write scraped records to the given iCalendar file")
	flag.BoolVar(&cfg.setup, "setup", false, "Write a default config file and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}

// scrapeRecords runs the extraction/classification pipeline once.
func (a *app) scrapeRecords(ctx context.Context) ([]model.EventRecord, error) {
	var body []byte
	if a.cfg.RenderJS {
		html, err := scrape.RenderHTML(ctx, scrape.RenderOptions{URL: a.cfg.TargetURL})
		if err != nil {
			return nil, err
		}
		body = []byte(html)
	} else {
		res, err := a.fetcher.Fetch(ctx, a.cfg.TargetURL)
		if err != nil {
			return nil, err
		}
		body = res.Body
	}

	candidates, err := scrape.Extract(body)
	if err != nil {
		return nil, err
	}

	records := make([]model.EventRecord, 0, len(candidates))
	for _, cand := range candidates {
		rec, ok := a.classifier.Classify(cand)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	model.Sort(records)

	appLog.Info("scrape pipeline finished", "candidates", len(candidates), "records", len(records))
	a.status.SetRecords(records)
	return records, nil
}

func (a *app) runScrapeOnly(ctx context.Context, dumpICS string) error {
	records, err := a.scrapeRecords(ctx)
	if err != nil {
		appLog.Error("scrape failed", err)
		return err
	}
	if dumpICS != "" {
		if err := export.WriteICS(dumpICS, records, a.loc); err != nil {
			appLog.Error("ics dump failed", err, "path", dumpICS)
			return err
		}
		appLog.Info("ics dump written", "path", dumpICS, "records", len(records))
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// runSync executes one full scrape+reconcile cycle. A failed reconciliation
// falls back to the full-replace strategy as an explicit second phase.
func (a *app) runSync(ctx context.Context, dumpICS string) bool {
	if err := a.cfg.Validate(); err != nil {
		appLog.Error("config validation failed", err)
		return false
	}

	records, err := a.scrapeRecords(ctx)
	if err != nil {
		appLog.Error("scrape failed", err)
		a.status.RecordRun(enginesync.Outcome{}, false, err)
		return false
	}
	if dumpICS != "" {
		if err := export.WriteICS(dumpICS, records, a.loc); err != nil {
			appLog.Error("ics dump failed", err, "path", dumpICS)
		}
	}
	if len(records) == 0 {
		// Nothing published; not an error, and deleting the whole window
		// over a scrape hiccup would be worse than staleness.
		appLog.Warn("no records scraped; skipping calendar update")
		a.status.RecordRun(enginesync.Outcome{}, true, nil)
		return true
	}

	authOpt, err := gcal.TokenSourceOption(ctx, a.cfg.Calendar.CredentialsFile, a.cfg.Calendar.TokenFile)
	if err != nil {
		appLog.Error("calendar authorization setup failed", err)
		a.status.RecordRun(enginesync.Outcome{}, false, err)
		return false
	}
	client, err := gcal.NewClient(ctx, a.cfg.Calendar.CalendarID, a.loc, authOpt)
	if err != nil {
		appLog.Error("calendar client setup failed", err)
		a.status.RecordRun(enginesync.Outcome{}, false, err)
		return false
	}
	engine := enginesync.NewEngine(client, a.loc, a.cfg.Sync)

	out, err := engine.Reconcile(ctx, records)
	if err != nil {
		appLog.Error("reconciliation failed; falling back to full replace", err)
		out, err = engine.FullReplace(ctx, records)
		if err != nil {
			appLog.Error("full replace failed", err)
			a.status.RecordRun(out, false, err)
			return false
		}
	}

	success := engine.Succeeded(out)
	appLog.Info("sync finished",
		"created", out.Created,
		"deleted", out.Deleted,
		"unchanged", out.Unchanged,
		"failed_creates", out.FailedCreates,
		"failed_deletes", out.FailedDeletes,
		"success", success,
	)
	a.status.RecordRun(out, success, nil)
	return success
}

// runAutomatic runs an initial sync and then repeats on the configured cron
// schedule until the context is canceled. A failed run never stops the
// schedule.
func (a *app) runAutomatic(ctx context.Context, dumpICS string) {
	c := cron.New()
	_, err := c.AddFunc(a.cfg.SyncCron, func() {
		if !a.runSync(ctx, dumpICS) {
			appLog.Warn("scheduled sync failed; next run will retry")
		}
	})
	if err != nil {
		appLog.Error("invalid sync_cron expression", err, "sync_cron", a.cfg.SyncCron)
		os.Exit(1)
	}

	appLog.Info("automatic mode", "sync_cron", a.cfg.SyncCron)
	a.runSync(ctx, dumpICS)

	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
	}
}
