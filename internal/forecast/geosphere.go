package forecast

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tidwall/gjson"
)

// GeoSphere serves an hourly ensemble timeseries: parameter-keyed data
// arrays nested under the first feature, index-aligned to a top-level
// timestamps array. Wind has no speed parameter, only u/v components.
func (c *Client) fetchGeosphere(ctx context.Context) ([]Daily, error) {
	url := fmt.Sprintf("%s?parameters=t2m,rr,u10m,v10m,ugust,vgust&lat_lon=%.4f,%.4f&output_format=geojson",
		c.geosphereURL, c.cfg.Lat, c.cfg.Lon)
	body, err := c.fetchBody(ctx, url)
	if err != nil {
		return nil, err
	}
	return parseGeosphere(body, c.loc)
}

func parseGeosphere(body []byte, loc *time.Location) ([]Daily, error) {
	root := gjson.ParseBytes(body)
	timestamps := root.Get("timestamps").Array()
	if len(timestamps) == 0 {
		return nil, fmt.Errorf("geosphere: no timestamps in response")
	}

	params := root.Get("features.0.properties.parameters")
	if !params.Exists() {
		return nil, fmt.Errorf("geosphere: no parameters in response")
	}

	temp := params.Get("t2m.data").Array()
	rain := params.Get("rr.data").Array()
	u := params.Get("u10m.data").Array()
	v := params.Get("v10m.data").Array()
	ugust := params.Get("ugust.data").Array()
	vgust := params.Get("vgust.data").Array()

	type acc struct {
		tMin, tMax sql.NullFloat64
		rainSum    sql.NullFloat64
		windSum    float64
		windN      int
		gustMax    sql.NullFloat64
	}
	days := make(map[string]*acc)

	at := func(arr []gjson.Result, i int) (float64, bool) {
		if i >= len(arr) || arr[i].Type == gjson.Null {
			return 0, false
		}
		return arr[i].Float(), true
	}

	for i, ts := range timestamps {
		t, err := time.Parse(time.RFC3339, ts.String())
		if err != nil {
			// Some deployments omit seconds.
			t, err = time.Parse("2006-01-02T15:04Z07:00", ts.String())
			if err != nil {
				continue
			}
		}
		day := t.In(loc).Format("2006-01-02")
		a := days[day]
		if a == nil {
			a = &acc{}
			days[day] = a
		}

		if tv, ok := at(temp, i); ok {
			if !a.tMin.Valid || tv < a.tMin.Float64 {
				a.tMin = sql.NullFloat64{Float64: tv, Valid: true}
			}
			if !a.tMax.Valid || tv > a.tMax.Float64 {
				a.tMax = sql.NullFloat64{Float64: tv, Valid: true}
			}
		}
		if rv, ok := at(rain, i); ok {
			a.rainSum = sql.NullFloat64{Float64: a.rainSum.Float64 + rv, Valid: true}
		}
		if uv, okU := at(u, i); okU {
			if vv, okV := at(v, i); okV {
				a.windSum += math.Sqrt(uv*uv+vv*vv) * 3.6
				a.windN++
			}
		}
		if ug, okU := at(ugust, i); okU {
			if vg, okV := at(vgust, i); okV {
				g := math.Sqrt(ug*ug+vg*vg) * 3.6
				if !a.gustMax.Valid || g > a.gustMax.Float64 {
					a.gustMax = sql.NullFloat64{Float64: g, Valid: true}
				}
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
			Precipitation: a.rainSum,
			WindGust:      a.gustMax,
		}
		if a.windN > 0 {
			d.WindSpeed = sql.NullFloat64{Float64: a.windSum / float64(a.windN), Valid: true}
		}
		out = append(out, d)
	}
	return out, nil
}
