package models

import (
	"database/sql"
	"time"
)

// DatasetKind distinguishes the two export files the station logger writes
// each month: the all-channel sensor dump and the main console export.
type DatasetKind string

const (
	KindAllSensors DatasetKind = "allsensors"
	KindMain       DatasetKind = "main"
)

// Forecast sources. One record per source per storage day.
const (
	SourceGeosphere   = "geosphere"
	SourceOpenWeather = "openweather"
	SourceMeteoblue   = "meteoblue"
	SourceOpenMeteo   = "openmeteo"
)

// Sources lists all forecast providers in the order they are polled.
var Sources = []string{SourceGeosphere, SourceOpenWeather, SourceMeteoblue, SourceOpenMeteo}

// DailyAggregate is one calendar day of aggregated readings. Day is a local
// "2006-01-02" date. Missing sensors stay nil, they are never zero-filled.
type DailyAggregate struct {
	Day     string   `json:"day"`
	TempMax *float64 `json:"tmax"`
	TempMin *float64 `json:"tmin"`
	TempAvg *float64 `json:"tavg"`
	RainDay *float64 `json:"rainDay"`
	WindMax *float64 `json:"windMax"`
	GustMax *float64 `json:"gustMax"`
	WindAvg *float64 `json:"windAvg"`
}

// Extreme pairs a value with the day it first occurred on. Ties keep the
// first-seen day.
type Extreme struct {
	Value float64 `json:"value"`
	Day   string  `json:"day"`
}

type TempRollup struct {
	Max            *Extreme `json:"max,omitempty"`
	Min            *Extreme `json:"min,omitempty"`
	DaysOver30     []string `json:"daysOver30"`
	DaysOver25     []string `json:"daysOver25"`
	DaysOver20     []string `json:"daysOver20"`
	FrostDays      []string `json:"frostDays"`      // tmin < 0
	SevereColdDays []string `json:"severeColdDays"` // tmin <= -10
}

type RainRollup struct {
	Total      float64  `json:"total"`
	MaxDay     *Extreme `json:"maxDay,omitempty"`
	MinDay     *Extreme `json:"minDay,omitempty"`
	DaysOver20 []string `json:"daysOver20"` // >= 20mm
	DaysOver30 []string `json:"daysOver30"` // >= 30mm
}

type WindRollup struct {
	WindMax *Extreme `json:"windMax,omitempty"`
	GustMax *Extreme `json:"gustMax,omitempty"`
	WindAvg *float64 `json:"windAvg,omitempty"`
}

type MonthStats struct {
	Month int        `json:"month"`
	Temp  TempRollup `json:"temperature"`
	Rain  RainRollup `json:"rain"`
	Wind  WindRollup `json:"wind"`
}

type YearStats struct {
	Year   int          `json:"year"`
	Temp   TempRollup   `json:"temperature"`
	Rain   RainRollup   `json:"rain"`
	Wind   WindRollup   `json:"wind"`
	Months []MonthStats `json:"months"`
}

// StatisticsPayload is the persisted statistics cache artifact.
type StatisticsPayload struct {
	UpdatedAt time.Time   `json:"updatedAt"`
	Years     []YearStats `json:"years"`
}

// ForecastRecord is one stored daily forecast, keyed by
// (storage_date, station_id, forecast_date, source). Dates are local
// "2006-01-02" strings.
type ForecastRecord struct {
	StorageDate   string
	StationID     string
	ForecastDate  string
	Source        string
	TempMin       sql.NullFloat64
	TempMax       sql.NullFloat64
	Precipitation sql.NullFloat64
	WindSpeed     sql.NullFloat64
	WindGust      sql.NullFloat64
}

// ForecastAnalysisRecord compares the latest stored forecast for a day
// against the locally aggregated actuals for the same day.
type ForecastAnalysisRecord struct {
	AnalysisDate    string
	StationID       string
	ForecastDate    string
	Source          string
	TempMinError    sql.NullFloat64
	TempMaxError    sql.NullFloat64
	PrecipError     sql.NullFloat64
	WindError       sql.NullFloat64
	ActualTempMin   sql.NullFloat64
	ActualTempMax   sql.NullFloat64
	ActualPrecip    sql.NullFloat64
	ActualWind      sql.NullFloat64
	ForecastTempMin sql.NullFloat64
	ForecastTempMax sql.NullFloat64
	ForecastPrecip  sql.NullFloat64
	ForecastWind    sql.NullFloat64
}

// RealtimeReading is one sensor channel value from the device's live
// snapshot.
type RealtimeReading struct {
	StationID  string
	Channel    string
	Value      sql.NullFloat64
	ObservedAt time.Time
}

// RealtimeDaily is the running per-day min/max for a sensor channel.
type RealtimeDaily struct {
	Day       string
	StationID string
	Channel   string
	Min       sql.NullFloat64
	Max       sql.NullFloat64
}
