package stats

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"heimwetter/internal/batch"
	"heimwetter/internal/metrics"
	"heimwetter/internal/models"
)

const DefaultMaxAge = 24 * time.Hour

// Service runs the full pipeline (materialize → discover → aggregate →
// rollup) and maintains the persisted JSON cache.
type Service struct {
	mat      *batch.Materializer
	kind     models.DatasetKind
	cachePth string
	maxAge   time.Duration
	loc      *time.Location
	now      func() time.Time
}

func NewService(mat *batch.Materializer, kind models.DatasetKind, cachePath string, maxAge time.Duration, loc *time.Location) *Service {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Service{
		mat:      mat,
		kind:     kind,
		cachePth: cachePath,
		maxAge:   maxAge,
		loc:      loc,
		now:      time.Now,
	}
}

// UpdateIfNeeded returns the cached payload when it is younger than the
// max age, otherwise recomputes and persists. A failed recompute leaves
// the previous cache untouched.
func (s *Service) UpdateIfNeeded() (*models.StatisticsPayload, error) {
	if cached, err := s.readCache(); err == nil && cached != nil {
		if s.now().Sub(cached.UpdatedAt) < s.maxAge {
			return cached, nil
		}
	} else if err != nil {
		log.Printf("stats: unreadable cache, recomputing: %v", err)
	}
	return s.Update()
}

// Update recomputes the full statistics tree across all available months
// and overwrites the cache atomically.
func (s *Service) Update() (*models.StatisticsPayload, error) {
	start := s.now()

	paths, err := s.mat.EnsureRange("", "", s.kind)
	if err != nil {
		metrics.StatisticsRecomputes.WithLabelValues("error").Inc()
		return nil, err
	}
	days, err := AggregateDaily(paths, s.loc)
	if err != nil {
		metrics.StatisticsRecomputes.WithLabelValues("error").Inc()
		return nil, err
	}

	payload := &models.StatisticsPayload{
		UpdatedAt: s.now().UTC(),
		Years:     BuildYears(days),
	}
	if err := s.writeCache(payload); err != nil {
		metrics.StatisticsRecomputes.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.StatisticsRecomputes.WithLabelValues("ok").Inc()
	metrics.StatisticsRecomputeDuration.Observe(s.now().Sub(start).Seconds())
	log.Printf("stats: recomputed %d years from %d batches in %s", len(payload.Years), len(paths), s.now().Sub(start).Round(time.Millisecond))
	return payload, nil
}

// DayAggregate materializes the month containing day ("2006-01-02") and
// returns that day's aggregate, or nil when the day has no data. The
// forecast analysis job uses this as its source of actuals.
func (s *Service) DayAggregate(day string) (*models.DailyAggregate, error) {
	if len(day) < 7 {
		return nil, fmt.Errorf("stats: bad day %q", day)
	}
	month := day[:4] + day[5:7]

	path, err := s.mat.Ensure(month, s.kind)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}
	days, err := AggregateDaily([]string{path}, s.loc)
	if err != nil {
		return nil, err
	}
	for i := range days {
		if days[i].Day == day {
			return &days[i], nil
		}
	}
	return nil, nil
}

// LatestDay returns the most recent day with data. The current month's
// export is preferred; when it has not been synced yet the newest available
// export stands in. Nil when the raw directory is empty.
func (s *Service) LatestDay() (*models.DailyAggregate, error) {
	month := s.now().In(s.loc).Format("200601")
	path, err := s.mat.EnsureLatest(month, s.kind)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}
	days, err := AggregateDaily([]string{path}, s.loc)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, nil
	}
	return &days[len(days)-1], nil
}

func (s *Service) readCache() (*models.StatisticsPayload, error) {
	data, err := os.ReadFile(s.cachePth)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var p models.StatisticsPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("stats: parse cache: %w", err)
	}
	return &p, nil
}

// writeCache persists via temp-file-then-rename. A reader never sees a
// half-written payload.
func (s *Service) writeCache(p *models.StatisticsPayload) error {
	if err := os.MkdirAll(filepath.Dir(s.cachePth), 0o755); err != nil {
		return fmt.Errorf("stats: create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("stats: marshal cache: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.cachePth), ".stats-*")
	if err != nil {
		return fmt.Errorf("stats: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("stats: write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("stats: close temp: %w", err)
	}
	return os.Rename(tmpName, s.cachePth)
}
