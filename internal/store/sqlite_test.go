package store

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"heimwetter/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	loc, err := time.LoadLocation("Europe/Vienna")
	if err != nil {
		t.Fatalf("load timezone: %v", err)
	}
	store := New(db, loc)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func nf(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func TestUpsertForecastIdempotent(t *testing.T) {
	store := setupTestStore(t)

	f := models.ForecastRecord{
		StorageDate:  "2024-07-14",
		StationID:    "home",
		ForecastDate: "2024-07-15",
		Source:       models.SourceGeosphere,
		TempMin:      nf(15.0),
		TempMax:      nf(28.0),
	}
	if err := store.UpsertForecast(f); err != nil {
		t.Fatalf("UpsertForecast: %v", err)
	}

	f.TempMax = nf(29.5)
	if err := store.UpsertForecast(f); err != nil {
		t.Fatalf("UpsertForecast again: %v", err)
	}

	got, err := store.GetForecasts("home", "2024-07-15")
	if err != nil {
		t.Fatalf("GetForecasts: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, re-running the same day must not duplicate", len(got))
	}
	if got[0].TempMax.Float64 != 29.5 {
		t.Errorf("TempMax = %v, want the overwritten value", got[0].TempMax.Float64)
	}
	if !got[0].TempMin.Valid || got[0].TempMin.Float64 != 15.0 {
		t.Errorf("TempMin = %+v", got[0].TempMin)
	}
}

func TestLatestForecastsForDate(t *testing.T) {
	store := setupTestStore(t)

	insert := func(storage, source string, tmax float64) {
		t.Helper()
		err := store.UpsertForecast(models.ForecastRecord{
			StorageDate:  storage,
			StationID:    "home",
			ForecastDate: "2024-07-15",
			Source:       source,
			TempMax:      nf(tmax),
		})
		if err != nil {
			t.Fatalf("UpsertForecast: %v", err)
		}
	}

	// Two storage days for geosphere; the newer one wins.
	insert("2024-07-13", models.SourceGeosphere, 27.0)
	insert("2024-07-14", models.SourceGeosphere, 29.0)
	insert("2024-07-14", models.SourceOpenMeteo, 30.0)
	// Stored after the forecast day; must be excluded from the cutoff.
	insert("2024-07-16", models.SourceMeteoblue, 99.0)

	latest, err := store.LatestForecastsForDate("home", "2024-07-15")
	if err != nil {
		t.Fatalf("LatestForecastsForDate: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("len = %d, want geosphere and openmeteo only", len(latest))
	}
	if got := latest[models.SourceGeosphere]; got.StorageDate != "2024-07-14" || got.TempMax.Float64 != 29.0 {
		t.Errorf("geosphere = %+v, want the 2024-07-14 row", got)
	}
	if _, ok := latest[models.SourceMeteoblue]; ok {
		t.Error("forecast stored after the target day leaked into the result")
	}

	other, err := store.LatestForecastsForDate("other", "2024-07-15")
	if err != nil {
		t.Fatalf("LatestForecastsForDate other station: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other station = %v, want empty", other)
	}
}

func TestUpsertAnalysisIdempotent(t *testing.T) {
	store := setupTestStore(t)

	a := models.ForecastAnalysisRecord{
		AnalysisDate:    "2024-07-16",
		StationID:       "home",
		ForecastDate:    "2024-07-15",
		Source:          models.SourceOpenWeather,
		TempMaxError:    nf(1.5),
		ActualTempMax:   nf(30.1),
		ForecastTempMax: nf(28.6),
	}
	for i := 0; i < 2; i++ {
		if err := store.UpsertAnalysis(a); err != nil {
			t.Fatalf("UpsertAnalysis: %v", err)
		}
	}

	got, err := store.GetAnalyses("home", "2024-07-15")
	if err != nil {
		t.Fatalf("GetAnalyses: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].TempMaxError.Float64 != 1.5 {
		t.Errorf("TempMaxError = %v", got[0].TempMaxError.Float64)
	}
	if got[0].TempMinError.Valid {
		t.Errorf("TempMinError = %+v, want null", got[0].TempMinError)
	}
}

func TestUpsertRealtime(t *testing.T) {
	store := setupTestStore(t)

	at := time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)
	readings := []models.RealtimeReading{
		{StationID: "home", Channel: "0x02", Value: nf(21.0), ObservedAt: at},
		{StationID: "home", Channel: "0x02", Value: nf(25.5), ObservedAt: at.Add(time.Hour)},
		{StationID: "home", Channel: "0x02", Value: nf(19.0), ObservedAt: at.Add(2 * time.Hour)},
	}
	for _, r := range readings {
		if err := store.UpsertRealtime(r); err != nil {
			t.Fatalf("UpsertRealtime: %v", err)
		}
	}

	latest, err := store.GetRealtimeLatest("home")
	if err != nil {
		t.Fatalf("GetRealtimeLatest: %v", err)
	}
	if len(latest) != 1 {
		t.Fatalf("len(latest) = %d, want 1", len(latest))
	}
	if latest[0].Value.Float64 != 19.0 {
		t.Errorf("latest value = %v, want the newest snapshot", latest[0].Value.Float64)
	}

	daily, err := store.GetRealtimeDaily("home", "2024-07-15")
	if err != nil {
		t.Fatalf("GetRealtimeDaily: %v", err)
	}
	if len(daily) != 1 {
		t.Fatalf("len(daily) = %d, want 1", len(daily))
	}
	if daily[0].Min.Float64 != 19.0 || daily[0].Max.Float64 != 25.5 {
		t.Errorf("daily min/max = %v/%v, want 19.0/25.5", daily[0].Min.Float64, daily[0].Max.Float64)
	}
}

func TestUpsertRealtimeNullValueSkipsDaily(t *testing.T) {
	store := setupTestStore(t)

	r := models.RealtimeReading{
		StationID:  "home",
		Channel:    "0x07",
		Value:      sql.NullFloat64{},
		ObservedAt: time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC),
	}
	if err := store.UpsertRealtime(r); err != nil {
		t.Fatalf("UpsertRealtime: %v", err)
	}

	latest, err := store.GetRealtimeLatest("home")
	if err != nil {
		t.Fatalf("GetRealtimeLatest: %v", err)
	}
	if len(latest) != 1 || latest[0].Value.Valid {
		t.Errorf("latest = %+v, want one null snapshot", latest)
	}

	daily, err := store.GetRealtimeDaily("home", "2024-07-15")
	if err != nil {
		t.Fatalf("GetRealtimeDaily: %v", err)
	}
	if len(daily) != 0 {
		t.Errorf("daily = %v, null readings must not touch min/max", daily)
	}
}
