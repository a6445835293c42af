// Command speller runs the P300 speller decoding service: it owns the
// decoding pipeline, the session database, and the monitoring HTTP
// interface. Signal acquisition is external; in dev mode a synthetic
// subject drives the pipeline end to end so the whole stack can be
// exercised without hardware.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yelabb/phantomspell/internal/config"
	"github.com/yelabb/phantomspell/internal/db"
	"github.com/yelabb/phantomspell/internal/eeg/monitor"
	"github.com/yelabb/phantomspell/internal/eeg/pipeline"
	"github.com/yelabb/phantomspell/internal/eeg/storage/sqlite"
	"github.com/yelabb/phantomspell/internal/monitoring"
	"github.com/yelabb/phantomspell/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "HTTP listen address")
	dbFile     = flag.String("db", "speller_session.db", "Path to the SQLite session database")
	configPath = flag.String("config", "", "Path to a tuning config JSON file")
	sampleRate = flag.Float64("rate", pipeline.DefaultSampleRate, "EEG sample rate in Hz")
	channels   = flag.Int("channels", pipeline.DefaultChannelCount, "EEG channel count")
	devMode    = flag.Bool("dev", false, "Run a synthetic subject instead of waiting for real signal")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	monitoring.SetDebug(*debug)
	monitoring.Logf("phantomspell %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
		tuning = loaded
		monitoring.Logf("loaded tuning config from %s", *configPath)
	}

	database, err := db.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	migrations, err := db.Migrations()
	if err != nil {
		log.Fatalf("failed to load migrations: %v", err)
	}
	if err := database.MigrateUp(migrations); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)
	models := sqlite.NewModelStore(database.DB)
	sessions := sqlite.NewSessionStore(database.DB)
	erp := monitor.NewERPPlotter(*sampleRate, tuning.GetPreStimulusMs())

	p := pipeline.New(pipeline.Config{
		Rows:            tuning.GetRows(),
		Cols:            tuning.GetCols(),
		SampleRate:      *sampleRate,
		ChannelCount:    *channels,
		WindowSeconds:   tuning.GetWindowSeconds(),
		PreStimulusMs:   tuning.GetPreStimulusMs(),
		EpochDurationMs: tuning.GetEpochDurationMs(),
		DisableBaseline: !tuning.GetBaselineCorrect(),
		Lambda:          tuning.GetLDALambda(),
		CVFolds:         tuning.GetCVFolds(),
		MainsHz:         tuning.GetMainsHz(),
		Metrics:         metrics,
		Models:          models,
		Sessions:        sessions,
		EpochSink:       erp,
	})
	monitoring.Logf("session %s: %dx%d grid, %gHz x %d channels",
		p.SessionID(), tuning.GetRows(), tuning.GetCols(), *sampleRate, *channels)

	if restored, err := models.Latest(); err != nil {
		monitoring.Logf("failed to restore model: %v", err)
	} else if restored != nil {
		p.SetModel(restored)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	ws := monitor.NewWebServer(monitor.WebServerConfig{
		Address:  *listen,
		Pipeline: p,
		Tuning:   tuning,
		ERP:      erp,
		Models:   models,
		Sessions: sessions,
		Registry: registry,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.Start(ctx); err != nil {
			monitoring.Logf("web server stopped: %v", err)
		}
	}()

	if *devMode {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runSyntheticSubject(ctx, p, tuning)
		}()
	} else {
		monitoring.Logf("no acquisition source in this build; feed the pipeline as a library or run with -dev")
	}

	<-ctx.Done()
	monitoring.Logf("shutting down")
	wg.Wait()
}
