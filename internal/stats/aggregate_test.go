package stats

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"heimwetter/internal/batch"
	"heimwetter/internal/models"
)

func testLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Vienna")
	if err != nil {
		t.Fatalf("load timezone: %v", err)
	}
	return loc
}

// materializeCSV runs one export through the real materializer and
// returns the columnar batch path.
func materializeCSV(t *testing.T, name, content string) string {
	t.Helper()
	rawDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(rawDir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	m := batch.NewMaterializer(rawDir, t.TempDir(), testLoc(t))
	paths, err := m.EnsureRange("", "", models.KindMain)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("paths = %v, want one batch", paths)
	}
	return paths[0]
}

func fval(t *testing.T, name string, p *float64) float64 {
	t.Helper()
	if p == nil {
		t.Fatalf("%s is nil", name)
	}
	return *p
}

func TestAggregateDaily(t *testing.T) {
	path := materializeCSV(t, "202407A.csv", strings.Join([]string{
		"Zeit,Außentemperatur(℃),Regen/Tag(mm),Wind(km/h),Böe(km/h)",
		"2024-07-15 06:00:00,18.0,0.0,10.0,15.0",
		"2024-07-15 14:00:00,30.1,2.4,20.0,35.0",
		"2024-07-15 22:00:00,21.5,2.4,6.0,9.0",
		"2024-07-16 06:00:00,17.0,0.0,4.0,7.0",
	}, "\n"))

	days, err := AggregateDaily([]string{path}, testLoc(t))
	if err != nil {
		t.Fatalf("AggregateDaily: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(days))
	}

	d := days[0]
	if d.Day != "2024-07-15" {
		t.Fatalf("day = %q", d.Day)
	}
	if got := fval(t, "TempMax", d.TempMax); got != 30.1 {
		t.Errorf("TempMax = %v", got)
	}
	if got := fval(t, "TempMin", d.TempMin); got != 18.0 {
		t.Errorf("TempMin = %v", got)
	}
	wantAvg := (18.0 + 30.1 + 21.5) / 3
	if got := fval(t, "TempAvg", d.TempAvg); got != wantAvg {
		t.Errorf("TempAvg = %v, want %v", got, wantAvg)
	}
	// Daily-cumulative rain counter: the day's max, not the sum.
	if got := fval(t, "RainDay", d.RainDay); got != 2.4 {
		t.Errorf("RainDay = %v, want 2.4", got)
	}
	if got := fval(t, "WindMax", d.WindMax); got != 20.0 {
		t.Errorf("WindMax = %v", got)
	}
	if got := fval(t, "GustMax", d.GustMax); got != 35.0 {
		t.Errorf("GustMax = %v", got)
	}
	if got := fval(t, "WindAvg", d.WindAvg); got != 12.0 {
		t.Errorf("WindAvg = %v, want 12.0", got)
	}
}

func TestAggregateDailyCoalescesRenamedColumn(t *testing.T) {
	// The thermometer was renamed mid-month: old rows fill the first
	// column, new rows the second. Each row takes its first non-null.
	path := materializeCSV(t, "202404A.csv", strings.Join([]string{
		"Zeit,Außentemperatur(℃),Outdoor Temperature (°C)",
		"2024-04-01 06:00:00,12.0,--",
		"2024-04-01 18:00:00,--,19.5",
	}, "\n"))

	days, err := AggregateDaily([]string{path}, testLoc(t))
	if err != nil {
		t.Fatalf("AggregateDaily: %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("len(days) = %d, want 1", len(days))
	}
	if got := fval(t, "TempMax", days[0].TempMax); got != 19.5 {
		t.Errorf("TempMax = %v, want 19.5", got)
	}
	if got := fval(t, "TempMin", days[0].TempMin); got != 12.0 {
		t.Errorf("TempMin = %v, want 12.0", got)
	}
}

func TestAggregateDailyRainFallback(t *testing.T) {
	// A stuck daily counter reads zero all day while the hourly column
	// still reports increments; the non-zero hourly sum must win.
	path := materializeCSV(t, "202405A.csv", strings.Join([]string{
		"Zeit,Temperatur Aussen(℃),Regen/Tag(mm),Regen/Stunde(mm)",
		"2024-05-01 08:00:00,10.0,0.0,1.5",
		"2024-05-01 09:00:00,11.0,0.0,0.5",
	}, "\n"))

	days, err := AggregateDaily([]string{path}, testLoc(t))
	if err != nil {
		t.Fatalf("AggregateDaily: %v", err)
	}
	if got := fval(t, "RainDay", days[0].RainDay); got != 2.0 {
		t.Errorf("RainDay = %v, want hourly sum 2.0", got)
	}
}

func TestAggregateDailyWindMetersPerSecond(t *testing.T) {
	path := materializeCSV(t, "202406A.csv", strings.Join([]string{
		"Zeit,Aussentemperatur(°C),Wind (m/s)",
		"2024-06-01 12:00:00,20.0,5.0",
	}, "\n"))

	days, err := AggregateDaily([]string{path}, testLoc(t))
	if err != nil {
		t.Fatalf("AggregateDaily: %v", err)
	}
	if got := fval(t, "WindMax", days[0].WindMax); got != 18.0 {
		t.Errorf("WindMax = %v, want 18.0 km/h", got)
	}
}

func TestAggregateDailyNoTemperature(t *testing.T) {
	path := materializeCSV(t, "202401A.csv", strings.Join([]string{
		"Zeit,Regen/Tag(mm)",
		"2024-01-01 00:00:00,1.0",
	}, "\n"))

	_, err := AggregateDaily([]string{path}, testLoc(t))
	if !errors.Is(err, ErrNoTemperature) {
		t.Fatalf("err = %v, want ErrNoTemperature", err)
	}
}

func TestAggregateDailyTemperatureInAnyBatch(t *testing.T) {
	// One batch without a resolvable thermometer is fine as long as some
	// batch in the set has one.
	noTemp := materializeCSV(t, "202401A.csv", strings.Join([]string{
		"Zeit,Regen/Tag(mm)",
		"2024-01-01 12:00:00,3.0",
	}, "\n"))
	withTemp := materializeCSV(t, "202402A.csv", strings.Join([]string{
		"Zeit,Außentemperatur(℃)",
		"2024-02-01 12:00:00,5.0",
	}, "\n"))

	days, err := AggregateDaily([]string{noTemp, withTemp}, testLoc(t))
	if err != nil {
		t.Fatalf("AggregateDaily: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(days))
	}
	if days[0].TempMax != nil {
		t.Errorf("day without thermometer has TempMax %v", *days[0].TempMax)
	}
	if got := fval(t, "RainDay", days[0].RainDay); got != 3.0 {
		t.Errorf("RainDay = %v", got)
	}
}

func TestAggregateDailyMergesRolesAcrossBatches(t *testing.T) {
	// The logger was reconfigured between months: the thermometer was
	// renamed and the daily rain counter gave way to an hourly column.
	// Discovery merges across the set, so both months aggregate through
	// one candidate chain.
	may := materializeCSV(t, "202405A.csv", strings.Join([]string{
		"Zeit,Außentemperatur(℃),Regen/Tag(mm)",
		"2024-05-01 12:00:00,15.0,4.0",
	}, "\n"))
	june := materializeCSV(t, "202406A.csv", strings.Join([]string{
		"Zeit,Outdoor Temperature (°C),Rain Hourly (mm)",
		"2024-06-01 08:00:00,21.0,1.0",
		"2024-06-01 09:00:00,23.0,0.5",
	}, "\n"))

	days, err := AggregateDaily([]string{may, june}, testLoc(t))
	if err != nil {
		t.Fatalf("AggregateDaily: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(days))
	}
	if got := fval(t, "TempMax", days[0].TempMax); got != 15.0 {
		t.Errorf("may TempMax = %v, want 15.0", got)
	}
	if got := fval(t, "RainDay", days[0].RainDay); got != 4.0 {
		t.Errorf("may RainDay = %v, want daily counter max 4.0", got)
	}
	if got := fval(t, "TempMax", days[1].TempMax); got != 23.0 {
		t.Errorf("june TempMax = %v, want 23.0", got)
	}
	if got := fval(t, "RainDay", days[1].RainDay); got != 1.5 {
		t.Errorf("june RainDay = %v, want hourly sum 1.5", got)
	}
}
