package forecast

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"heimwetter/internal/metrics"
	"heimwetter/internal/models"
	"heimwetter/internal/stats"
	"heimwetter/internal/store"
)

// Service ties the provider client to storage and to the local
// aggregates used for next-day accuracy analysis.
type Service struct {
	store  *store.Store
	client *Client
	stats  *stats.Service
	loc    *time.Location

	now func() time.Time
}

func NewService(st *store.Store, client *Client, statsSvc *stats.Service, loc *time.Location) *Service {
	return &Service{
		store:  st,
		client: client,
		stats:  statsSvc,
		loc:    loc,
		now:    time.Now,
	}
}

// sourcePause spaces out sequential provider fetches. Rate-limit
// friendliness beats throughput here.
const sourcePause = 2 * time.Second

// StoreForStation fetches all sources once and upserts every returned
// day under today's storage date. A failing source is logged and does
// not block the others.
func (s *Service) StoreForStation(ctx context.Context, stationID string) error {
	storageDate := s.now().In(s.loc).Format("2006-01-02")

	var lastErr error
	for i, source := range models.Sources {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sourcePause):
			}
		}
		days, err := s.client.Fetch(ctx, source)
		if errors.Is(err, ErrNoAPIKey) {
			log.Printf("forecast: %s: skipped, no api key", source)
			continue
		}
		if err != nil {
			log.Printf("forecast: %s: fetch failed: %v", source, err)
			lastErr = err
			continue
		}
		for _, d := range days {
			rec := models.ForecastRecord{
				StorageDate:   storageDate,
				StationID:     stationID,
				ForecastDate:  d.Date,
				Source:        source,
				TempMin:       d.TempMin,
				TempMax:       d.TempMax,
				Precipitation: d.Precipitation,
				WindSpeed:     d.WindSpeed,
				WindGust:      d.WindGust,
			}
			if err := s.store.UpsertForecast(rec); err != nil {
				log.Printf("forecast: %s: store %s failed: %v", source, d.Date, err)
				lastErr = err
				continue
			}
			metrics.ForecastsStored.WithLabelValues(source).Inc()
		}
		log.Printf("forecast: %s: stored %d days", source, len(days))
	}
	return lastErr
}

// AnalyzeYesterday compares yesterday's actuals against the newest
// forecast each source stored for that day. Missing actuals end the run
// quietly, the station may simply not have exported that month yet.
func (s *Service) AnalyzeYesterday(ctx context.Context, stationID string) error {
	today := s.now().In(s.loc)
	yesterday := today.AddDate(0, 0, -1).Format("2006-01-02")

	actual, err := s.stats.DayAggregate(yesterday)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", yesterday, err)
	}
	if actual == nil {
		log.Printf("forecast: analyze %s: no measured data yet", yesterday)
		return nil
	}

	latest, err := s.store.LatestForecastsForDate(stationID, yesterday)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", yesterday, err)
	}
	if len(latest) == 0 {
		log.Printf("forecast: analyze %s: no stored forecasts", yesterday)
		return nil
	}

	analysisDate := today.Format("2006-01-02")
	for source, f := range latest {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rec := models.ForecastAnalysisRecord{
			AnalysisDate:    analysisDate,
			StationID:       stationID,
			ForecastDate:    yesterday,
			Source:          source,
			TempMinError:    absErr(actual.TempMin, f.TempMin),
			TempMaxError:    absErr(actual.TempMax, f.TempMax),
			PrecipError:     absErr(actual.RainDay, f.Precipitation),
			WindError:       absErr(actual.WindMax, f.WindSpeed),
			ActualTempMin:   nullable(actual.TempMin),
			ActualTempMax:   nullable(actual.TempMax),
			ActualPrecip:    nullable(actual.RainDay),
			ActualWind:      nullable(actual.WindMax),
			ForecastTempMin: f.TempMin,
			ForecastTempMax: f.TempMax,
			ForecastPrecip:  f.Precipitation,
			ForecastWind:    f.WindSpeed,
		}
		if err := s.store.UpsertAnalysis(rec); err != nil {
			return fmt.Errorf("analyze %s: %s: %w", yesterday, source, err)
		}
		metrics.AnalysisRecords.WithLabelValues(source).Inc()
	}
	log.Printf("forecast: analyze %s: %d sources compared", yesterday, len(latest))
	return nil
}

// absErr is the absolute difference, null when either side is missing.
func absErr(actual *float64, forecast sql.NullFloat64) sql.NullFloat64 {
	if actual == nil || !forecast.Valid {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: math.Abs(*actual - forecast.Float64), Valid: true}
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
