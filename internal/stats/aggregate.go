// Package stats turns materialized monthly batches into daily aggregates
// and year/month rollups, and maintains the persisted statistics cache.
package stats

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"heimwetter/internal/batch"
	"heimwetter/internal/coerce"
	"heimwetter/internal/columns"
	"heimwetter/internal/models"
)

// ErrNoTemperature means the whole batch set resolved no outdoor
// temperature column. Statistics are meaningless without one, so this is
// fatal for the recompute, not a degraded result.
var ErrNoTemperature = fmt.Errorf("stats: no temperature column discoverable in batch set")

type dayAcc struct {
	tempMax  sql.NullFloat64
	tempMin  sql.NullFloat64
	tempSum  float64
	tempN    int
	rainMax  sql.NullFloat64 // daily-cumulative tier: max per day
	hourSum  sql.NullFloat64 // hourly tier: summed increments
	genSum   sql.NullFloat64 // generic tier: summed increments
	windMax  sql.NullFloat64
	gustMax  sql.NullFloat64
	windSum  float64
	windN    int
}

// AggregateDaily computes one DailyAggregate per calendar day present in
// the given batches. Roles are discovered per batch and merged across the
// whole set, so a sensor renamed between months keeps one coalesce chain;
// values coalesce across the ranked candidates independently per row. Day
// boundaries use loc.
func AggregateDaily(paths []string, loc *time.Location) ([]models.DailyAggregate, error) {
	var batches []*batch.Columnar
	var roles columns.RoleMap
	for _, path := range paths {
		c, err := batch.Read(path)
		if err != nil {
			return nil, err
		}
		batches = append(batches, c)
		roles = roles.Merge(columns.Discover(c.Columns))
	}

	if !roles.HasTemperature() {
		return nil, ErrNoTemperature
	}

	days := make(map[string]*dayAcc)
	for _, c := range batches {
		accumulate(c, roles, loc, days)
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.DailyAggregate, 0, len(keys))
	for _, day := range keys {
		out = append(out, finalize(day, days[day], roles.RainMode))
	}
	return out, nil
}

func accumulate(c *batch.Columnar, roles columns.RoleMap, loc *time.Location, days map[string]*dayAcc) {
	tempCands := roles.Candidates[columns.RoleTemperature]
	dailyCands := roles.Candidates[columns.RoleRainDaily]
	hourCands := roles.Candidates[columns.RoleRainHourly]
	genCands := roles.Candidates[columns.RoleRainGeneric]
	windCands := roles.Candidates[columns.RoleWind]
	gustCands := roles.Candidates[columns.RoleGust]

	for row := 0; row < c.NumRows(); row++ {
		day := time.Unix(c.TS[row], 0).In(loc).Format("2006-01-02")
		acc := days[day]
		if acc == nil {
			acc = &dayAcc{}
			days[day] = acc
		}

		if t := coalesce(c, tempCands, row); t.Valid {
			maxInto(&acc.tempMax, t.Float64)
			minInto(&acc.tempMin, t.Float64)
			acc.tempSum += t.Float64
			acc.tempN++
		}
		if r := coalesce(c, dailyCands, row); r.Valid {
			maxInto(&acc.rainMax, r.Float64)
		}
		if r := coalesce(c, hourCands, row); r.Valid {
			sumInto(&acc.hourSum, r.Float64)
		}
		if r := coalesce(c, genCands, row); r.Valid {
			sumInto(&acc.genSum, r.Float64)
		}
		if w := coalesceWind(c, windCands, row); w.Valid {
			maxInto(&acc.windMax, w.Float64)
			acc.windSum += w.Float64
			acc.windN++
		}
		if g := coalesceWind(c, gustCands, row); g.Valid {
			maxInto(&acc.gustMax, g.Float64)
		}
	}
}

// coalesce takes the first non-null candidate value for a row. A sensor
// renamed mid-dataset leaves its old column null and its new column
// populated; per-row coalescing bridges that seam.
func coalesce(c *batch.Columnar, candidates []string, row int) sql.NullFloat64 {
	for _, col := range candidates {
		vals, ok := c.Values[col]
		if !ok || row >= len(vals) {
			continue
		}
		if v := coerce.Float(vals[row]); v.Valid {
			return v
		}
	}
	return sql.NullFloat64{}
}

// coalesceWind is coalesce with per-candidate unit conversion: a column
// named in m/s is scaled to km/h.
func coalesceWind(c *batch.Columnar, candidates []string, row int) sql.NullFloat64 {
	for _, col := range candidates {
		vals, ok := c.Values[col]
		if !ok || row >= len(vals) {
			continue
		}
		v := coerce.Float(vals[row])
		if !v.Valid {
			continue
		}
		if columns.MetersPerSecond(col) {
			v.Float64 *= 3.6
		}
		return v
	}
	return sql.NullFloat64{}
}

// finalize resolves the daily rain figure by the discovered mode. In max
// mode a genuinely non-zero daily-cumulative max wins, then a non-zero
// hourly sum, then the hourly sum as-is, then the generic sum, then
// whatever the daily max was (possibly zero). A zero daily max never
// shadows a non-zero hourly sum. In sum mode no cumulative counter exists
// and the summed increments are taken directly.
func finalize(day string, acc *dayAcc, mode columns.RainMode) models.DailyAggregate {
	d := models.DailyAggregate{
		Day:     day,
		TempMax: ptr(acc.tempMax),
		TempMin: ptr(acc.tempMin),
		WindMax: ptr(acc.windMax),
		GustMax: ptr(acc.gustMax),
	}
	if acc.tempN > 0 {
		avg := acc.tempSum / float64(acc.tempN)
		d.TempAvg = &avg
	}
	if acc.windN > 0 {
		avg := acc.windSum / float64(acc.windN)
		d.WindAvg = &avg
	}

	switch mode {
	case columns.RainModeMax:
		switch {
		case acc.rainMax.Valid && acc.rainMax.Float64 > 0:
			d.RainDay = ptr(acc.rainMax)
		case acc.hourSum.Valid && acc.hourSum.Float64 > 0:
			d.RainDay = ptr(acc.hourSum)
		case acc.hourSum.Valid:
			d.RainDay = ptr(acc.hourSum)
		case acc.genSum.Valid:
			d.RainDay = ptr(acc.genSum)
		case acc.rainMax.Valid:
			d.RainDay = ptr(acc.rainMax)
		}
	case columns.RainModeSum:
		switch {
		case acc.hourSum.Valid:
			d.RainDay = ptr(acc.hourSum)
		case acc.genSum.Valid:
			d.RainDay = ptr(acc.genSum)
		}
	}
	return d
}

func ptr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func maxInto(dst *sql.NullFloat64, v float64) {
	if !dst.Valid || v > dst.Float64 {
		*dst = sql.NullFloat64{Float64: v, Valid: true}
	}
}

func minInto(dst *sql.NullFloat64, v float64) {
	if !dst.Valid || v < dst.Float64 {
		*dst = sql.NullFloat64{Float64: v, Valid: true}
	}
}

func sumInto(dst *sql.NullFloat64, v float64) {
	if !dst.Valid {
		*dst = sql.NullFloat64{Float64: v, Valid: true}
		return
	}
	dst.Float64 += v
}
