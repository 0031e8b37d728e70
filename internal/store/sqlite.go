// Package store persists forecasts, forecast analysis results and the
// realtime archive in SQLite. The connection is a process-wide handle
// created once at startup and shared for the process lifetime.
package store

import (
	"database/sql"
	"time"

	"heimwetter/internal/models"
)

type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	return &Store{db: db, loc: loc}
}

// UpsertForecast stores one daily forecast, keyed by
// (storage_date, station_id, forecast_date, source). Re-running the poller
// on the same day overwrites that day's row instead of duplicating it.
func (s *Store) UpsertForecast(f models.ForecastRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO forecasts (storage_date, station_id, forecast_date, source, temp_min, temp_max, precipitation, wind_speed, wind_gust)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(storage_date, station_id, forecast_date, source) DO UPDATE SET
			temp_min = excluded.temp_min,
			temp_max = excluded.temp_max,
			precipitation = excluded.precipitation,
			wind_speed = excluded.wind_speed,
			wind_gust = excluded.wind_gust
	`, f.StorageDate, f.StationID, f.ForecastDate, f.Source,
		f.TempMin, f.TempMax, f.Precipitation, f.WindSpeed, f.WindGust)
	return err
}

// LatestForecastsForDate returns, per source, the forecast for forecastDate
// with the most recent storage_date not after forecastDate, i.e. the
// forecast that was freshest as of the day it predicted. Staler rows for
// the same source are ignored.
func (s *Store) LatestForecastsForDate(stationID, forecastDate string) (map[string]models.ForecastRecord, error) {
	rows, err := s.db.Query(`
		WITH ranked AS (
			SELECT f.*,
			       ROW_NUMBER() OVER (PARTITION BY f.source ORDER BY f.storage_date DESC) AS rn
			FROM forecasts f
			WHERE f.station_id = ? AND f.forecast_date = ? AND f.storage_date <= ?
		)
		SELECT storage_date, station_id, forecast_date, source, temp_min, temp_max, precipitation, wind_speed, wind_gust
		FROM ranked
		WHERE rn = 1
		ORDER BY source
	`, stationID, forecastDate, forecastDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]models.ForecastRecord)
	for rows.Next() {
		var f models.ForecastRecord
		if err := rows.Scan(&f.StorageDate, &f.StationID, &f.ForecastDate, &f.Source,
			&f.TempMin, &f.TempMax, &f.Precipitation, &f.WindSpeed, &f.WindGust); err != nil {
			return nil, err
		}
		result[f.Source] = f
	}
	return result, rows.Err()
}

func (s *Store) GetForecasts(stationID, forecastDate string) ([]models.ForecastRecord, error) {
	rows, err := s.db.Query(`
		SELECT storage_date, station_id, forecast_date, source, temp_min, temp_max, precipitation, wind_speed, wind_gust
		FROM forecasts
		WHERE station_id = ? AND forecast_date = ?
		ORDER BY source, storage_date
	`, stationID, forecastDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forecasts []models.ForecastRecord
	for rows.Next() {
		var f models.ForecastRecord
		if err := rows.Scan(&f.StorageDate, &f.StationID, &f.ForecastDate, &f.Source,
			&f.TempMin, &f.TempMax, &f.Precipitation, &f.WindSpeed, &f.WindGust); err != nil {
			return nil, err
		}
		forecasts = append(forecasts, f)
	}
	return forecasts, rows.Err()
}

// UpsertAnalysis stores one analysis row; re-running the daily job for the
// same day is a no-op overwrite, never a duplicate.
func (s *Store) UpsertAnalysis(a models.ForecastAnalysisRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO forecast_analysis (
			analysis_date, station_id, forecast_date, source,
			temp_min_error, temp_max_error, precipitation_error, wind_speed_error,
			actual_temp_min, actual_temp_max, actual_precipitation, actual_wind_speed,
			forecast_temp_min, forecast_temp_max, forecast_precipitation, forecast_wind_speed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(analysis_date, station_id, forecast_date, source) DO UPDATE SET
			temp_min_error = excluded.temp_min_error,
			temp_max_error = excluded.temp_max_error,
			precipitation_error = excluded.precipitation_error,
			wind_speed_error = excluded.wind_speed_error,
			actual_temp_min = excluded.actual_temp_min,
			actual_temp_max = excluded.actual_temp_max,
			actual_precipitation = excluded.actual_precipitation,
			actual_wind_speed = excluded.actual_wind_speed,
			forecast_temp_min = excluded.forecast_temp_min,
			forecast_temp_max = excluded.forecast_temp_max,
			forecast_precipitation = excluded.forecast_precipitation,
			forecast_wind_speed = excluded.forecast_wind_speed
	`, a.AnalysisDate, a.StationID, a.ForecastDate, a.Source,
		a.TempMinError, a.TempMaxError, a.PrecipError, a.WindError,
		a.ActualTempMin, a.ActualTempMax, a.ActualPrecip, a.ActualWind,
		a.ForecastTempMin, a.ForecastTempMax, a.ForecastPrecip, a.ForecastWind)
	return err
}

func (s *Store) GetAnalyses(stationID, forecastDate string) ([]models.ForecastAnalysisRecord, error) {
	rows, err := s.db.Query(`
		SELECT analysis_date, station_id, forecast_date, source,
		       temp_min_error, temp_max_error, precipitation_error, wind_speed_error,
		       actual_temp_min, actual_temp_max, actual_precipitation, actual_wind_speed,
		       forecast_temp_min, forecast_temp_max, forecast_precipitation, forecast_wind_speed
		FROM forecast_analysis
		WHERE station_id = ? AND forecast_date = ?
		ORDER BY source
	`, stationID, forecastDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []models.ForecastAnalysisRecord
	for rows.Next() {
		var a models.ForecastAnalysisRecord
		if err := rows.Scan(&a.AnalysisDate, &a.StationID, &a.ForecastDate, &a.Source,
			&a.TempMinError, &a.TempMaxError, &a.PrecipError, &a.WindError,
			&a.ActualTempMin, &a.ActualTempMax, &a.ActualPrecip, &a.ActualWind,
			&a.ForecastTempMin, &a.ForecastTempMax, &a.ForecastPrecip, &a.ForecastWind); err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

// UpsertRealtime stores the latest snapshot value for a channel and folds
// it into that day's running min/max.
func (s *Store) UpsertRealtime(r models.RealtimeReading) error {
	_, err := s.db.Exec(`
		INSERT INTO realtime_latest (station_id, channel, value, observed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(station_id, channel) DO UPDATE SET
			value = excluded.value,
			observed_at = excluded.observed_at
	`, r.StationID, r.Channel, r.Value, r.ObservedAt.UTC())
	if err != nil {
		return err
	}
	if !r.Value.Valid {
		return nil
	}

	day := r.ObservedAt.In(s.loc).Format("2006-01-02")
	_, err = s.db.Exec(`
		INSERT INTO realtime_daily (day, station_id, channel, min_value, max_value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(day, station_id, channel) DO UPDATE SET
			min_value = MIN(min_value, excluded.min_value),
			max_value = MAX(max_value, excluded.max_value)
	`, day, r.StationID, r.Channel, r.Value, r.Value)
	return err
}

func (s *Store) GetRealtimeLatest(stationID string) ([]models.RealtimeReading, error) {
	rows, err := s.db.Query(`
		SELECT station_id, channel, value, observed_at
		FROM realtime_latest
		WHERE station_id = ?
		ORDER BY channel
	`, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []models.RealtimeReading
	for rows.Next() {
		var r models.RealtimeReading
		if err := rows.Scan(&r.StationID, &r.Channel, &r.Value, &r.ObservedAt); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

func (s *Store) GetRealtimeDaily(stationID, day string) ([]models.RealtimeDaily, error) {
	rows, err := s.db.Query(`
		SELECT day, station_id, channel, min_value, max_value
		FROM realtime_daily
		WHERE station_id = ? AND day = ?
		ORDER BY channel
	`, stationID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.RealtimeDaily
	for rows.Next() {
		var e models.RealtimeDaily
		if err := rows.Scan(&e.Day, &e.StationID, &e.Channel, &e.Min, &e.Max); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
