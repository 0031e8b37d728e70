package forecast

import (
	"math"
	"testing"
	"time"
)

func vienna(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Vienna")
	if err != nil {
		t.Fatalf("load timezone: %v", err)
	}
	return loc
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestParseGeosphere(t *testing.T) {
	// Two hourly steps on the same local day. Wind is u/v components in
	// m/s; speed is derived per step and averaged, gusts take the max.
	body := []byte(`{
		"timestamps": ["2024-07-15T10:00+00:00", "2024-07-15T11:00+00:00"],
		"features": [{"properties": {"parameters": {
			"t2m":   {"data": [21.0, 24.5]},
			"rr":    {"data": [0.4, 1.1]},
			"u10m":  {"data": [3.0, 0.0]},
			"v10m":  {"data": [4.0, 5.0]},
			"ugust": {"data": [6.0, 0.0]},
			"vgust": {"data": [8.0, 5.0]}
		}}}]
	}`)

	days, err := parseGeosphere(body, vienna(t))
	if err != nil {
		t.Fatalf("parseGeosphere: %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("len(days) = %d, want 1", len(days))
	}
	d := days[0]
	if d.Date != "2024-07-15" {
		t.Errorf("Date = %q", d.Date)
	}
	approx(t, "TempMin", d.TempMin.Float64, 21.0)
	approx(t, "TempMax", d.TempMax.Float64, 24.5)
	approx(t, "Precipitation", d.Precipitation.Float64, 1.5)
	// Speeds: sqrt(3²+4²)=5 and 5 m/s, mean 5 m/s = 18 km/h.
	approx(t, "WindSpeed", d.WindSpeed.Float64, 18.0)
	// Gusts: sqrt(6²+8²)=10 and 5 m/s, max 10 m/s = 36 km/h.
	approx(t, "WindGust", d.WindGust.Float64, 36.0)
}

func TestParseGeosphereNulls(t *testing.T) {
	body := []byte(`{
		"timestamps": ["2024-07-15T10:00+00:00"],
		"features": [{"properties": {"parameters": {
			"t2m":  {"data": [null]},
			"rr":   {"data": [null]},
			"u10m": {"data": [null]},
			"v10m": {"data": [2.0]}
		}}}]
	}`)

	days, err := parseGeosphere(body, vienna(t))
	if err != nil {
		t.Fatalf("parseGeosphere: %v", err)
	}
	d := days[0]
	if d.TempMin.Valid || d.TempMax.Valid || d.Precipitation.Valid || d.WindSpeed.Valid {
		t.Errorf("null inputs produced values: %+v", d)
	}
}

func TestParseGeosphereEmpty(t *testing.T) {
	if _, err := parseGeosphere([]byte(`{}`), vienna(t)); err == nil {
		t.Fatal("empty response parsed without error")
	}
}

func TestParseOpenWeather(t *testing.T) {
	// Three 3-hourly items: two on 2024-07-15 (local), one after local
	// midnight on 2024-07-16. 22:00 UTC is 00:00 CEST the next day.
	body := []byte(`{"list": [
		{"dt": 1721034000, "main": {"temp": 22.0}, "wind": {"speed": 5.0, "gust": 9.0}, "rain": {"3h": 0.6}},
		{"dt": 1721044800, "main": {"temp": 27.4}, "wind": {"speed": 3.0, "gust": 6.0}, "snow": {"3h": 0.4}},
		{"dt": 1721080800, "main": {"temp": 18.0}, "wind": {"speed": 2.0}}
	]}`)

	days, err := parseOpenWeather(body, vienna(t))
	if err != nil {
		t.Fatalf("parseOpenWeather: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(days))
	}

	d := days[0]
	if d.Date != "2024-07-15" {
		t.Errorf("Date = %q", d.Date)
	}
	approx(t, "TempMin", d.TempMin.Float64, 22.0)
	approx(t, "TempMax", d.TempMax.Float64, 27.4)
	// Rain and snow both count toward precipitation.
	approx(t, "Precipitation", d.Precipitation.Float64, 1.0)
	approx(t, "WindSpeed", d.WindSpeed.Float64, 4.0*3.6)
	approx(t, "WindGust", d.WindGust.Float64, 9.0*3.6)

	if days[1].Date != "2024-07-16" {
		t.Errorf("second day = %q", days[1].Date)
	}
	if days[1].Precipitation.Valid {
		t.Error("day without rain items has non-null precipitation")
	}
}

func TestParseOpenWeatherEmpty(t *testing.T) {
	if _, err := parseOpenWeather([]byte(`{"list": []}`), vienna(t)); err == nil {
		t.Fatal("empty list parsed without error")
	}
}

func TestParseMeteoblue(t *testing.T) {
	body := []byte(`{"data_day": {
		"time": ["2024-07-15 00:00", "2024-07-16 00:00"],
		"temperature_max": [29.0, null],
		"temperature_min": [16.5, 15.0],
		"precipitation": [0.0, 4.2],
		"windspeed_mean": [4.0, 3.0],
		"windspeed_max": [10.0, null]
	}}`)

	days, err := parseMeteoblue(body)
	if err != nil {
		t.Fatalf("parseMeteoblue: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(days))
	}

	d := days[0]
	if d.Date != "2024-07-15" {
		t.Errorf("Date = %q, timestamp suffix not trimmed", d.Date)
	}
	approx(t, "TempMax", d.TempMax.Float64, 29.0)
	approx(t, "WindSpeed", d.WindSpeed.Float64, 4.0*3.6)
	approx(t, "WindGust", d.WindGust.Float64, 36.0)

	if days[1].TempMax.Valid {
		t.Error("null temperature_max became a value")
	}
	if days[1].WindGust.Valid {
		t.Error("null windspeed_max became a value")
	}
}

func TestParseOpenMeteo(t *testing.T) {
	body := []byte(`{"daily": {
		"time": ["2024-07-15", "2024-07-16"],
		"temperature_2m_max": [28.3, null],
		"temperature_2m_min": [15.1, 14.0],
		"precipitation_sum": [0.0, 6.5],
		"wind_speed_10m_max": [22.0, 19.0],
		"wind_gusts_10m_max": [41.0, 35.0],
		"weather_code": [3, 61]
	}}`)

	days, err := parseOpenMeteo(body)
	if err != nil {
		t.Fatalf("parseOpenMeteo: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(days))
	}

	d := days[0]
	if d.Date != "2024-07-15" {
		t.Errorf("Date = %q", d.Date)
	}
	approx(t, "TempMax", d.TempMax.Float64, 28.3)
	// Speeds are requested in km/h; no conversion.
	approx(t, "WindSpeed", d.WindSpeed.Float64, 22.0)
	approx(t, "WindGust", d.WindGust.Float64, 41.0)

	if days[1].TempMax.Valid {
		t.Error("null temperature became a value")
	}
}

func TestParseOpenMeteoEmpty(t *testing.T) {
	if _, err := parseOpenMeteo([]byte(`{"daily": {"time": []}}`)); err == nil {
		t.Fatal("empty daily block parsed without error")
	}
}
