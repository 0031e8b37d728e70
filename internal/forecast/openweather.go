package forecast

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// OpenWeather's free forecast endpoint returns 3-hour-resolution list
// items with nested main/wind/rain/snow objects; they have to be bucketed
// into local calendar days client-side. Speeds arrive in m/s.
func (c *Client) fetchOpenWeather(ctx context.Context) ([]Daily, error) {
	if c.cfg.OpenWeatherKey == "" {
		return nil, ErrNoAPIKey
	}
	url := fmt.Sprintf("%s?lat=%.4f&lon=%.4f&units=metric&appid=%s",
		c.openWeatherURL, c.cfg.Lat, c.cfg.Lon, c.cfg.OpenWeatherKey)
	body, err := c.fetchBody(ctx, url)
	if err != nil {
		return nil, err
	}
	return parseOpenWeather(body, c.loc)
}

type openWeatherResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp    *float64 `json:"temp"`
			TempMin *float64 `json:"temp_min"`
			TempMax *float64 `json:"temp_max"`
		} `json:"main"`
		Wind struct {
			Speed *float64 `json:"speed"`
			Gust  *float64 `json:"gust"`
		} `json:"wind"`
		Rain struct {
			ThreeH *float64 `json:"3h"`
		} `json:"rain"`
		Snow struct {
			ThreeH *float64 `json:"3h"`
		} `json:"snow"`
	} `json:"list"`
}

func parseOpenWeather(body []byte, loc *time.Location) ([]Daily, error) {
	var data openWeatherResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("openweather: unmarshal: %w", err)
	}
	if len(data.List) == 0 {
		return nil, fmt.Errorf("openweather: empty list")
	}

	type acc struct {
		tMin, tMax sql.NullFloat64
		precip     sql.NullFloat64
		windSum    float64
		windN      int
		gustMax    sql.NullFloat64
	}
	days := make(map[string]*acc)

	for _, item := range data.List {
		day := time.Unix(item.Dt, 0).In(loc).Format("2006-01-02")
		a := days[day]
		if a == nil {
			a = &acc{}
			days[day] = a
		}

		if item.Main.Temp != nil {
			t := *item.Main.Temp
			if !a.tMin.Valid || t < a.tMin.Float64 {
				a.tMin = sql.NullFloat64{Float64: t, Valid: true}
			}
			if !a.tMax.Valid || t > a.tMax.Float64 {
				a.tMax = sql.NullFloat64{Float64: t, Valid: true}
			}
		}
		if item.Rain.ThreeH != nil {
			a.precip = sql.NullFloat64{Float64: a.precip.Float64 + *item.Rain.ThreeH, Valid: true}
		}
		if item.Snow.ThreeH != nil {
			a.precip = sql.NullFloat64{Float64: a.precip.Float64 + *item.Snow.ThreeH, Valid: true}
		}
		if item.Wind.Speed != nil {
			a.windSum += *item.Wind.Speed * 3.6
			a.windN++
		}
		if item.Wind.Gust != nil {
			g := *item.Wind.Gust * 3.6
			if !a.gustMax.Valid || g > a.gustMax.Float64 {
				a.gustMax = sql.NullFloat64{Float64: g, Valid: true}
			}
		}
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Daily, 0, len(keys))
	for _, day := range keys {
		a := days[day]
		d := Daily{
			Date:          day,
			TempMin:       a.tMin,
			TempMax:       a.tMax,
			Precipitation: a.precip,
			WindGust:      a.gustMax,
		}
		if a.windN > 0 {
			d.WindSpeed = sql.NullFloat64{Float64: a.windSum / float64(a.windN), Valid: true}
		}
		out = append(out, d)
	}
	return out, nil
}
