package forecast

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
)

// Open-Meteo returns daily index-aligned arrays under a "daily" object,
// with a numeric weather code instead of a provider icon. Speeds are
// requested in km/h directly.
func (c *Client) fetchOpenMeteo(ctx context.Context) ([]Daily, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", c.cfg.Lat))
	q.Set("longitude", fmt.Sprintf("%.4f", c.cfg.Lon))
	q.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,wind_speed_10m_max,wind_gusts_10m_max,weather_code")
	q.Set("wind_speed_unit", "kmh")
	q.Set("timezone", "auto")

	body, err := c.fetchBody(ctx, c.openMeteoURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return parseOpenMeteo(body)
}

type openMeteoResponse struct {
	Daily struct {
		Time             []string   `json:"time"`
		TemperatureMax   []*float64 `json:"temperature_2m_max"`
		TemperatureMin   []*float64 `json:"temperature_2m_min"`
		PrecipitationSum []*float64 `json:"precipitation_sum"`
		WindSpeedMax     []*float64 `json:"wind_speed_10m_max"`
		WindGustsMax     []*float64 `json:"wind_gusts_10m_max"`
		WeatherCode      []*int     `json:"weather_code"`
	} `json:"daily"`
}

func parseOpenMeteo(body []byte) ([]Daily, error) {
	var data openMeteoResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("openmeteo: unmarshal: %w", err)
	}
	if len(data.Daily.Time) == 0 {
		return nil, fmt.Errorf("openmeteo: empty daily block")
	}

	at := func(arr []*float64, i int) sql.NullFloat64 {
		if i < len(arr) && arr[i] != nil {
			return sql.NullFloat64{Float64: *arr[i], Valid: true}
		}
		return sql.NullFloat64{}
	}

	out := make([]Daily, 0, len(data.Daily.Time))
	for i, date := range data.Daily.Time {
		out = append(out, Daily{
			Date:          date,
			TempMin:       at(data.Daily.TemperatureMin, i),
			TempMax:       at(data.Daily.TemperatureMax, i),
			Precipitation: at(data.Daily.PrecipitationSum, i),
			WindSpeed:     at(data.Daily.WindSpeedMax, i),
			WindGust:      at(data.Daily.WindGustsMax, i),
		})
	}
	return out, nil
}
