package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS forecasts (
    storage_date TEXT NOT NULL,
    station_id TEXT NOT NULL,
    forecast_date TEXT NOT NULL,
    source TEXT NOT NULL,
    temp_min REAL,
    temp_max REAL,
    precipitation REAL,
    wind_speed REAL,
    wind_gust REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (storage_date, station_id, forecast_date, source)
);

CREATE TABLE IF NOT EXISTS forecast_analysis (
    analysis_date TEXT NOT NULL,
    station_id TEXT NOT NULL,
    forecast_date TEXT NOT NULL,
    source TEXT NOT NULL,
    temp_min_error REAL,
    temp_max_error REAL,
    precipitation_error REAL,
    wind_speed_error REAL,
    actual_temp_min REAL,
    actual_temp_max REAL,
    actual_precipitation REAL,
    actual_wind_speed REAL,
    forecast_temp_min REAL,
    forecast_temp_max REAL,
    forecast_precipitation REAL,
    forecast_wind_speed REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (analysis_date, station_id, forecast_date, source)
);

CREATE TABLE IF NOT EXISTS realtime_latest (
    station_id TEXT NOT NULL,
    channel TEXT NOT NULL,
    value REAL,
    observed_at DATETIME NOT NULL,
    PRIMARY KEY (station_id, channel)
);

CREATE TABLE IF NOT EXISTS realtime_daily (
    day TEXT NOT NULL,
    station_id TEXT NOT NULL,
    channel TEXT NOT NULL,
    min_value REAL,
    max_value REAL,
    PRIMARY KEY (day, station_id, channel)
);

CREATE INDEX IF NOT EXISTS idx_forecasts_target ON forecasts(station_id, forecast_date);
CREATE INDEX IF NOT EXISTS idx_analysis_date ON forecast_analysis(forecast_date);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
