package ingest

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"heimwetter/internal/forecast"
	"heimwetter/internal/stats"
)

// DailyJobs bundles the once-a-day work: refresh the statistics cache,
// pull and store fresh forecasts, and score yesterday's forecasts
// against the measured aggregates.
type DailyJobs struct {
	stats     *stats.Service
	forecasts *forecast.Service
	stationID string
}

func NewDailyJobs(statsSvc *stats.Service, fcSvc *forecast.Service, stationID string) *DailyJobs {
	return &DailyJobs{stats: statsSvc, forecasts: fcSvc, stationID: stationID}
}

// RunAll runs every job, each isolated so one failure does not starve
// the others.
func (d *DailyJobs) RunAll(ctx context.Context) error {
	log.Println("daily: running jobs")

	if d.stats != nil {
		if _, err := d.stats.Update(); err != nil {
			log.Printf("daily: statistics update: %v", err)
		}
	}

	if d.forecasts != nil {
		store := func() error {
			return d.forecasts.StoreForStation(ctx, d.stationID)
		}
		retry := backoff.WithMaxRetries(backoff.NewConstantBackOff(30*time.Second), 3)
		if err := backoff.Retry(store, backoff.WithContext(retry, ctx)); err != nil {
			log.Printf("daily: forecast store: %v", err)
		}

		analyzeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := d.forecasts.AnalyzeYesterday(analyzeCtx, d.stationID); err != nil {
			log.Printf("daily: forecast analysis: %v", err)
		}
	}

	return nil
}
