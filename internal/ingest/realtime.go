// Package ingest runs the background side of the pipeline: polling the
// station console for live readings, pulling new monthly exports off the
// logger's FTP share, and firing the daily statistics and forecast jobs.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"heimwetter/internal/coerce"
	"heimwetter/internal/httputil"
	"heimwetter/internal/metrics"
	"heimwetter/internal/models"
	"heimwetter/internal/store"
)

// DeviceClient polls the station console's local livedata endpoint. The
// console answers on the LAN only, so a short timeout is enough.
type DeviceClient struct {
	http      *http.Client
	url       string
	stationID string
}

func NewDeviceClient(url, stationID string) *DeviceClient {
	return &DeviceClient{
		http:      httputil.NewClientTimeout(10 * time.Second),
		url:       url,
		stationID: stationID,
	}
}

// Livedata groups whose entries carry {id, val} pairs. The console
// formats val with units and sentinels baked in ("23.5 C", "--").
var livedataGroups = []string{"common_list", "rain", "piezoRain", "wh25"}

// Poll fetches one live snapshot and flattens it to channel readings.
func (d *DeviceClient) Poll(ctx context.Context) ([]models.RealtimeReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("livedata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("livedata: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("livedata: read: %w", err)
	}
	return parseLivedata(body, d.stationID, time.Now()), nil
}

func parseLivedata(body []byte, stationID string, at time.Time) []models.RealtimeReading {
	var readings []models.RealtimeReading

	add := func(channel, raw string) {
		channel = strings.TrimSpace(channel)
		if channel == "" {
			return
		}
		readings = append(readings, models.RealtimeReading{
			StationID:  stationID,
			Channel:    channel,
			Value:      coerce.Float(raw),
			ObservedAt: at,
		})
	}

	for _, group := range livedataGroups {
		gjson.GetBytes(body, group).ForEach(func(_, item gjson.Result) bool {
			add(item.Get("id").String(), item.Get("val").String())
			return true
		})
	}

	// Extra temperature/humidity channels report named fields per entry
	// instead of id/val pairs.
	gjson.GetBytes(body, "ch_aisle").ForEach(func(_, item gjson.Result) bool {
		ch := item.Get("channel").String()
		add("ch"+ch+"_temp", item.Get("temp").String())
		add("ch"+ch+"_humidity", item.Get("humidity").String())
		return true
	})

	return readings
}

// Archiver persists live snapshots: the latest value per channel plus the
// running per-day min/max.
type Archiver struct {
	store  *store.Store
	device *DeviceClient
}

func NewArchiver(st *store.Store, device *DeviceClient) *Archiver {
	return &Archiver{store: st, device: device}
}

func (a *Archiver) PollOnce(ctx context.Context) error {
	readings, err := a.device.Poll(ctx)
	if err != nil {
		metrics.RealtimePolls.WithLabelValues("error").Inc()
		return err
	}
	for _, r := range readings {
		if err := a.store.UpsertRealtime(r); err != nil {
			metrics.RealtimePolls.WithLabelValues("error").Inc()
			return fmt.Errorf("livedata: store %s: %w", r.Channel, err)
		}
	}
	metrics.RealtimePolls.WithLabelValues("ok").Inc()
	return nil
}
