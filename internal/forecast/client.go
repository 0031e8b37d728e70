// Package forecast fetches daily forecasts from four independent
// providers, each with its own response shape, and normalizes them to a
// common daily record for storage and next-day accuracy analysis.
package forecast

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"heimwetter/internal/httputil"
	"heimwetter/internal/metrics"
	"heimwetter/internal/models"
)

// ErrNoAPIKey marks a provider that cannot be queried because its key is
// not configured. Callers skip the source rather than failing the run.
var ErrNoAPIKey = errors.New("forecast: api key not configured")

// Daily is the normalized per-day forecast shape shared by all sources.
// Date is a local "2006-01-02" day; speeds are km/h, precipitation mm.
type Daily struct {
	Date          string
	TempMin       sql.NullFloat64
	TempMax       sql.NullFloat64
	Precipitation sql.NullFloat64
	WindSpeed     sql.NullFloat64
	WindGust      sql.NullFloat64
}

type Config struct {
	Lat            float64
	Lon            float64
	OpenWeatherKey string
	MeteoblueKey   string
}

type Client struct {
	http *http.Client
	cfg  Config
	loc  *time.Location

	// Base URLs are fields so tests can point them at a local server.
	geosphereURL   string
	openWeatherURL string
	meteoblueURL   string
	openMeteoURL   string
}

func NewClient(cfg Config, loc *time.Location) *Client {
	return &Client{
		http:           httputil.NewClient(),
		cfg:            cfg,
		loc:            loc,
		geosphereURL:   "https://dataset.api.hub.geosphere.at/v1/timeseries/forecast/nwp-v1-1h-2500m",
		openWeatherURL: "https://api.openweathermap.org/data/2.5/forecast",
		meteoblueURL:   "https://my.meteoblue.com/packages/basic-day",
		openMeteoURL:   "https://api.open-meteo.com/v1/forecast",
	}
}

// Fetch retrieves and normalizes the current forecast from one source.
func (c *Client) Fetch(ctx context.Context, source string) ([]Daily, error) {
	start := time.Now()
	var (
		days []Daily
		err  error
	)
	switch source {
	case models.SourceGeosphere:
		days, err = c.fetchGeosphere(ctx)
	case models.SourceOpenWeather:
		days, err = c.fetchOpenWeather(ctx)
	case models.SourceMeteoblue:
		days, err = c.fetchMeteoblue(ctx)
	case models.SourceOpenMeteo:
		days, err = c.fetchOpenMeteo(ctx)
	default:
		return nil, fmt.Errorf("forecast: unknown source %q", source)
	}

	switch {
	case errors.Is(err, ErrNoAPIKey):
		metrics.ProviderFetches.WithLabelValues(source, "skipped").Inc()
	case err != nil:
		metrics.ProviderFetches.WithLabelValues(source, "error").Inc()
	default:
		metrics.ProviderFetches.WithLabelValues(source, "ok").Inc()
		metrics.ProviderFetchLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
	}
	return days, err
}

// fetchBody GETs a URL with bounded retries. Network errors and rate
// limiting retry; any other non-200 is permanent for this run, the next
// scheduled tick tries again anyway.
func (c *Client) fetchBody(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}
