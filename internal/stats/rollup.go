package stats

import (
	"sort"

	"heimwetter/internal/models"
)

// rollupAcc builds the threshold lists and extremes for one year or one
// month in a single pass. Running extremes keep the first-seen day on
// ties, they do not overwrite on equal values.
type rollupAcc struct {
	temp models.TempRollup
	rain models.RainRollup
	wind models.WindRollup

	windSum float64
	windN   int
	hasRain bool
}

func (a *rollupAcc) add(d models.DailyAggregate) {
	if d.TempMax != nil {
		v := *d.TempMax
		if a.temp.Max == nil || v > a.temp.Max.Value {
			a.temp.Max = &models.Extreme{Value: v, Day: d.Day}
		}
		if v > 30 {
			a.temp.DaysOver30 = append(a.temp.DaysOver30, d.Day)
		}
		if v > 25 {
			a.temp.DaysOver25 = append(a.temp.DaysOver25, d.Day)
		}
		if v > 20 {
			a.temp.DaysOver20 = append(a.temp.DaysOver20, d.Day)
		}
	}
	if d.TempMin != nil {
		v := *d.TempMin
		if a.temp.Min == nil || v < a.temp.Min.Value {
			a.temp.Min = &models.Extreme{Value: v, Day: d.Day}
		}
		if v < 0 {
			a.temp.FrostDays = append(a.temp.FrostDays, d.Day)
		}
		if v <= -10 {
			a.temp.SevereColdDays = append(a.temp.SevereColdDays, d.Day)
		}
	}
	if d.RainDay != nil {
		v := *d.RainDay
		a.hasRain = true
		a.rain.Total += v
		if a.rain.MaxDay == nil || v > a.rain.MaxDay.Value {
			a.rain.MaxDay = &models.Extreme{Value: v, Day: d.Day}
		}
		if a.rain.MinDay == nil || v < a.rain.MinDay.Value {
			a.rain.MinDay = &models.Extreme{Value: v, Day: d.Day}
		}
		if v >= 20 {
			a.rain.DaysOver20 = append(a.rain.DaysOver20, d.Day)
		}
		if v >= 30 {
			a.rain.DaysOver30 = append(a.rain.DaysOver30, d.Day)
		}
	}
	if d.WindMax != nil {
		if a.wind.WindMax == nil || *d.WindMax > a.wind.WindMax.Value {
			a.wind.WindMax = &models.Extreme{Value: *d.WindMax, Day: d.Day}
		}
	}
	if d.GustMax != nil {
		if a.wind.GustMax == nil || *d.GustMax > a.wind.GustMax.Value {
			a.wind.GustMax = &models.Extreme{Value: *d.GustMax, Day: d.Day}
		}
	}
	if d.WindAvg != nil {
		a.windSum += *d.WindAvg
		a.windN++
	}
}

func (a *rollupAcc) done() (models.TempRollup, models.RainRollup, models.WindRollup) {
	if a.windN > 0 {
		avg := a.windSum / float64(a.windN)
		a.wind.WindAvg = &avg
	}
	return a.temp, a.rain, a.wind
}

// BuildYears folds the day list into the year → month statistics tree.
// The tree is always rebuilt wholesale; nothing is mutated in place.
func BuildYears(days []models.DailyAggregate) []models.YearStats {
	type monthKey struct{ year, month int }
	yearAccs := make(map[int]*rollupAcc)
	monthAccs := make(map[monthKey]*rollupAcc)

	for _, d := range days {
		if len(d.Day) < 7 {
			continue
		}
		year := atoi(d.Day[:4])
		month := atoi(d.Day[5:7])
		if year == 0 || month == 0 {
			continue
		}

		ya := yearAccs[year]
		if ya == nil {
			ya = &rollupAcc{}
			yearAccs[year] = ya
		}
		ya.add(d)

		mk := monthKey{year, month}
		ma := monthAccs[mk]
		if ma == nil {
			ma = &rollupAcc{}
			monthAccs[mk] = ma
		}
		ma.add(d)
	}

	years := make([]int, 0, len(yearAccs))
	for y := range yearAccs {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]models.YearStats, 0, len(years))
	for _, y := range years {
		ys := models.YearStats{Year: y}
		ys.Temp, ys.Rain, ys.Wind = yearAccs[y].done()

		for m := 1; m <= 12; m++ {
			ma, ok := monthAccs[monthKey{y, m}]
			if !ok {
				continue
			}
			ms := models.MonthStats{Month: m}
			ms.Temp, ms.Rain, ms.Wind = ma.done()
			ys.Months = append(ys.Months, ms)
		}
		out = append(out, ys)
	}
	return out
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
