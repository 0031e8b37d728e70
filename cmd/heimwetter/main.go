package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"heimwetter/internal/batch"
	"heimwetter/internal/forecast"
	"heimwetter/internal/ingest"
	"heimwetter/internal/models"
	"heimwetter/internal/stats"
	"heimwetter/internal/store"
)

type globals struct {
	DB        string        `name:"db" default:"data/heimwetter.db" env:"HW_DB" help:"Path to the SQLite database."`
	RawDir    string        `name:"raw-dir" default:"data/raw" env:"HW_RAW_DIR" help:"Directory holding the monthly CSV exports."`
	BatchDir  string        `name:"batch-dir" default:"data/batches" env:"HW_BATCH_DIR" help:"Directory for materialized columnar batches."`
	CachePath string        `name:"cache" default:"data/statistics.json" env:"HW_CACHE" help:"Path of the statistics cache file."`
	StationID string        `name:"station" default:"home" env:"HW_STATION" help:"Station identifier used in storage keys."`
	Timezone  string        `name:"timezone" default:"Europe/Vienna" env:"HW_TZ" help:"Local timezone for day boundaries."`
	MaxAge    time.Duration `name:"max-age" default:"24h" env:"HW_MAX_AGE" help:"Statistics cache lifetime."`

	Lat float64 `name:"lat" default:"48.2082" env:"HW_LAT" help:"Station latitude."`
	Lon float64 `name:"lon" default:"16.3738" env:"HW_LON" help:"Station longitude."`

	OpenWeatherKey string `name:"openweather-key" env:"OPENWEATHER_API_KEY" help:"OpenWeather API key. Empty skips the source."`
	MeteoblueKey   string `name:"meteoblue-key" env:"METEOBLUE_API_KEY" help:"Meteoblue API key. Empty skips the source."`

	DeviceURL string `name:"device-url" env:"HW_DEVICE_URL" help:"Console livedata URL, e.g. http://192.168.1.50/get_livedata_info. Empty disables realtime polling."`

	FTPHost      string `name:"ftp-host" env:"HW_FTP_HOST" help:"Logger FTP host:port. Empty disables export sync."`
	FTPUser      string `name:"ftp-user" env:"HW_FTP_USER" help:"Logger FTP user."`
	FTPPassword  string `name:"ftp-password" env:"HW_FTP_PASSWORD" help:"Logger FTP password."`
	FTPRemoteDir string `name:"ftp-dir" default:"/" env:"HW_FTP_DIR" help:"Remote directory with the CSV exports."`
}

type cli struct {
	globals

	Run      runCmd      `cmd:"" default:"1" help:"Run the background scheduler."`
	Stats    statsCmd    `cmd:"" help:"Recompute the statistics cache and print it."`
	Latest   latestCmd   `cmd:"" help:"Print the most recent day's aggregate."`
	Forecast forecastCmd `cmd:"" help:"Fetch and store forecasts from all sources once."`
	Analyze  analyzeCmd  `cmd:"" help:"Score yesterday's forecasts against measured data."`
	Sync     syncCmd     `cmd:"" help:"Pull new CSV exports from the logger's FTP share."`
}

// app wires the services once; every subcommand runs against it.
type app struct {
	g         *globals
	loc       *time.Location
	store     *store.Store
	stats     *stats.Service
	forecasts *forecast.Service
	ctx       context.Context
}

type runCmd struct {
	MetricsAddr      string        `name:"metrics-addr" default:":9180" env:"HW_METRICS_ADDR" help:"Listen address for the Prometheus endpoint. Empty disables it."`
	PollInterval     time.Duration `name:"poll-interval" default:"1m" env:"HW_POLL_INTERVAL" help:"Realtime device poll interval."`
	ForecastInterval time.Duration `name:"forecast-interval" default:"15m" env:"HW_FORECAST_INTERVAL" help:"How often the daily forecast/analysis window is checked."`
}

func (c *runCmd) Run(a *app) error {
	var archiver *ingest.Archiver
	if a.g.DeviceURL != "" {
		archiver = ingest.NewArchiver(a.store, ingest.NewDeviceClient(a.g.DeviceURL, a.g.StationID))
	}
	var sync *ingest.ExportSync
	if a.g.FTPHost != "" {
		sync = ingest.NewExportSync(a.g.FTPHost, a.g.FTPUser, a.g.FTPPassword, a.g.FTPRemoteDir, a.g.RawDir)
	}
	daily := ingest.NewDailyJobs(a.stats, a.forecasts, a.g.StationID)
	scheduler := ingest.NewScheduler(archiver, sync, a.stats, daily, a.loc)
	scheduler.SetIntervals(c.PollInterval, c.ForecastInterval)

	if c.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Printf("metrics: listening on %s", c.MetricsAddr)
			if err := http.ListenAndServe(c.MetricsAddr, mux); err != nil {
				log.Printf("metrics: %v", err)
			}
		}()
	}

	log.Println("scheduler: starting")
	scheduler.Start(a.ctx)
	<-a.ctx.Done()
	return nil
}

type statsCmd struct{}

func (c *statsCmd) Run(a *app) error {
	payload, err := a.stats.Update()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

type latestCmd struct{}

func (c *latestCmd) Run(a *app) error {
	d, err := a.stats.LatestDay()
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("latest: no exports in raw directory")
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

type forecastCmd struct{}

func (c *forecastCmd) Run(a *app) error {
	return a.forecasts.StoreForStation(a.ctx, a.g.StationID)
}

type analyzeCmd struct{}

func (c *analyzeCmd) Run(a *app) error {
	return a.forecasts.AnalyzeYesterday(a.ctx, a.g.StationID)
}

type syncCmd struct{}

func (c *syncCmd) Run(a *app) error {
	if a.g.FTPHost == "" {
		return fmt.Errorf("sync: --ftp-host not configured")
	}
	sync := ingest.NewExportSync(a.g.FTPHost, a.g.FTPUser, a.g.FTPPassword, a.g.FTPRemoteDir, a.g.RawDir)
	n, err := sync.Sync()
	if err != nil {
		return err
	}
	log.Printf("sync: %d exports downloaded", n)
	return nil
}

func main() {
	var flags cli
	kctx := kong.Parse(&flags,
		kong.Name("heimwetter"),
		kong.Description("Home weather station pipeline: CSV ingestion, statistics, forecasts."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.UsageOnError(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	loc, err := time.LoadLocation(flags.Timezone)
	if err != nil {
		log.Printf("warning: load timezone %s: %v, using UTC", flags.Timezone, err)
		loc = time.UTC
	}

	db, err := sql.Open("sqlite", flags.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db, loc)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	mat := batch.NewMaterializer(flags.RawDir, flags.BatchDir, loc)
	statsSvc := stats.NewService(mat, models.KindMain, flags.CachePath, flags.MaxAge, loc)

	fcClient := forecast.NewClient(forecast.Config{
		Lat:            flags.Lat,
		Lon:            flags.Lon,
		OpenWeatherKey: flags.OpenWeatherKey,
		MeteoblueKey:   flags.MeteoblueKey,
	}, loc)
	fcSvc := forecast.NewService(st, fcClient, statsSvc, loc)

	a := &app{
		g:         &flags.globals,
		loc:       loc,
		store:     st,
		stats:     statsSvc,
		forecasts: fcSvc,
		ctx:       ctx,
	}
	kctx.FatalIfErrorf(kctx.Run(a))
}
