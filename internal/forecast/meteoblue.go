package forecast

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// meteoblue's day package is already daily: metric-keyed arrays aligned by
// index to a parallel time array. Wind speeds arrive in m/s.
func (c *Client) fetchMeteoblue(ctx context.Context) ([]Daily, error) {
	if c.cfg.MeteoblueKey == "" {
		return nil, ErrNoAPIKey
	}
	url := fmt.Sprintf("%s?lat=%.4f&lon=%.4f&format=json&apikey=%s",
		c.meteoblueURL, c.cfg.Lat, c.cfg.Lon, c.cfg.MeteoblueKey)
	body, err := c.fetchBody(ctx, url)
	if err != nil {
		return nil, err
	}
	return parseMeteoblue(body)
}

type meteoblueResponse struct {
	DataDay struct {
		Time           []string   `json:"time"`
		TemperatureMax []*float64 `json:"temperature_max"`
		TemperatureMin []*float64 `json:"temperature_min"`
		Precipitation  []*float64 `json:"precipitation"`
		WindspeedMean  []*float64 `json:"windspeed_mean"`
		WindspeedMax   []*float64 `json:"windspeed_max"`
	} `json:"data_day"`
}

func parseMeteoblue(body []byte) ([]Daily, error) {
	var data meteoblueResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("meteoblue: unmarshal: %w", err)
	}
	if len(data.DataDay.Time) == 0 {
		return nil, fmt.Errorf("meteoblue: empty data_day")
	}

	at := func(arr []*float64, i int) sql.NullFloat64 {
		if i < len(arr) && arr[i] != nil {
			return sql.NullFloat64{Float64: *arr[i], Valid: true}
		}
		return sql.NullFloat64{}
	}
	kmh := func(v sql.NullFloat64) sql.NullFloat64 {
		if v.Valid {
			v.Float64 *= 3.6
		}
		return v
	}

	out := make([]Daily, 0, len(data.DataDay.Time))
	for i, date := range data.DataDay.Time {
		if len(date) > 10 {
			date = date[:10]
		}
		out = append(out, Daily{
			Date:          date,
			TempMin:       at(data.DataDay.TemperatureMin, i),
			TempMax:       at(data.DataDay.TemperatureMax, i),
			Precipitation: at(data.DataDay.Precipitation, i),
			WindSpeed:     kmh(at(data.DataDay.WindspeedMean, i)),
			WindGust:      kmh(at(data.DataDay.WindspeedMax, i)),
		})
	}
	return out, nil
}
