// Package columns resolves semantic sensor roles against the free-form,
// locale-varying header names found in monthly logger exports. The same
// outdoor thermometer has shown up as "Außentemperatur", "Outdoor
// Temperature" and "Temperatur Aussen(℃)" in different months, so nothing
// here binds to a fixed schema: every role yields a ranked candidate list
// and queries coalesce across it per row.
package columns

import "fmt"

// Role is a semantic quantity that must be mapped to concrete columns.
type Role string

const (
	RoleTemperature Role = "temperature"
	RoleDewPoint    Role = "dewPoint"
	RoleFeelsLike   Role = "feelsLike"
	RoleRainDaily   Role = "rainDaily"
	RoleRainHourly  Role = "rainHourly"
	RoleRainGeneric Role = "rainGeneric"
	RoleWind        Role = "wind"
	RoleGust        Role = "gust"
)

// RainMode says how rainfall columns aggregate into a daily total.
type RainMode int

const (
	RainModeNone RainMode = iota
	RainModeMax           // daily-cumulative counter, take the day's max
	RainModeSum           // incremental amounts, sum over the day
)

// RoleMap is the per-batch-set resolution of roles to column names.
// Candidate lists are ranked; index 0 is the primary.
type RoleMap struct {
	Candidates map[Role][]string
	RainMode   RainMode
}

// Primary returns the top-ranked column for a role, or "" when the role
// did not resolve.
func (m RoleMap) Primary(role Role) string {
	if c := m.Candidates[role]; len(c) > 0 {
		return c[0]
	}
	return ""
}

// HasTemperature reports whether the temperature role resolved. Statistics
// cannot be computed without it.
func (m RoleMap) HasTemperature() bool {
	return len(m.Candidates[RoleTemperature]) > 0
}

var (
	tempTokens      = []string{"temperatur", "temp"}
	outdoorTokens   = []string{"aussen", "draussen", "outdoor", "outside"}
	indoorTokens    = []string{"innen", "indoor", "inside"}
	derivedTokens   = []string{"taupunkt", "dewpoint", "dewpt", "gefuehlt", "feelslike", "heatindex", "realfeel", "windchill"}
	rainTokens      = []string{"regen", "rain", "niederschlag", "precip"}
	rainDailyTokens = []string{"daily", "tag", "24h", "heute", "today"}
	rainSubDay      = []string{"stunde", "stuendlich", "hour", "hourly", "minute"}
	rainRateTokens  = []string{"rate", "intensitaet", "intensity"}
	rainPeriod      = []string{"jahr", "year", "monat", "month", "woche", "week", "event"}
	windTokens      = []string{"wind", "boe", "gust"}
	gustTokens      = []string{"gust", "boe"}
	directionTokens = []string{"richtung", "direction", "dir"}
)

// Discover resolves roles for one set of column names. It is a pure
// function of the header; unit conversion and value coercion happen later.
// Every role other than temperature is optional.
func Discover(names []string) RoleMap {
	m := RoleMap{Candidates: make(map[Role][]string)}

	for _, name := range names {
		n := Normalize(name)
		if n == "" {
			continue
		}

		if isTemperature(n) {
			m.Candidates[RoleTemperature] = append(m.Candidates[RoleTemperature], name)
		}
		if containsAny(n, []string{"taupunkt", "dewpoint", "dewpt"}) {
			m.Candidates[RoleDewPoint] = append(m.Candidates[RoleDewPoint], name)
		}
		if containsAny(n, []string{"gefuehlt", "feelslike", "heatindex", "realfeel"}) {
			m.Candidates[RoleFeelsLike] = append(m.Candidates[RoleFeelsLike], name)
		}

		classifyRain(&m, name, n)
		classifyWind(&m, name, n)
	}

	m.RainMode = rainMode(m.Candidates)
	return m
}

// rainMode derives how rainfall aggregates from the resolved candidates: a
// daily-cumulative counter anywhere in the set means max, otherwise any
// incremental column means sum.
func rainMode(cands map[Role][]string) RainMode {
	switch {
	case len(cands[RoleRainDaily]) > 0:
		return RainModeMax
	case len(cands[RoleRainHourly]) > 0, len(cands[RoleRainGeneric]) > 0:
		return RainModeSum
	}
	return RainModeNone
}

func isTemperature(n string) bool {
	if containsAny(n, indoorTokens) || containsAny(n, derivedTokens) {
		return false
	}
	return containsAny(n, tempTokens) && containsAny(n, outdoorTokens)
}

// classifyRain sorts a rainfall column into one of three tiers: a
// daily-cumulative counter (reset at midnight, take max), a sub-day
// increment (sum), or a generic rain column (sum). Rate and long-period
// totals are never usable for a daily figure.
func classifyRain(m *RoleMap, name, n string) {
	if !containsAny(n, rainTokens) {
		return
	}
	if containsAny(n, rainRateTokens) || containsAny(n, rainPeriod) {
		return
	}
	switch {
	case containsAny(n, rainDailyTokens):
		m.Candidates[RoleRainDaily] = append(m.Candidates[RoleRainDaily], name)
	case containsAny(n, rainSubDay):
		m.Candidates[RoleRainHourly] = append(m.Candidates[RoleRainHourly], name)
	default:
		m.Candidates[RoleRainGeneric] = append(m.Candidates[RoleRainGeneric], name)
	}
}

func classifyWind(m *RoleMap, name, n string) {
	if !containsAny(n, windTokens) || containsAny(n, directionTokens) {
		return
	}
	if containsAny(n, gustTokens) {
		m.Candidates[RoleGust] = append(m.Candidates[RoleGust], name)
		return
	}
	m.Candidates[RoleWind] = append(m.Candidates[RoleWind], name)
}

// Merge folds another batch's role map into this one, appending candidates
// that are not already listed. Cross-month schema drift means later batches
// may name the same sensor differently; the union keeps the coalesce chain
// working across the whole query scope. The rain mode is re-derived from
// the union: a daily counter in any batch makes the whole set max-mode.
func (m RoleMap) Merge(other RoleMap) RoleMap {
	out := RoleMap{Candidates: make(map[Role][]string)}
	for role, cands := range m.Candidates {
		out.Candidates[role] = append([]string(nil), cands...)
	}
	for role, cands := range other.Candidates {
		seen := make(map[string]bool, len(out.Candidates[role]))
		for _, c := range out.Candidates[role] {
			seen[c] = true
		}
		for _, c := range cands {
			if !seen[c] {
				out.Candidates[role] = append(out.Candidates[role], c)
			}
		}
	}
	out.RainMode = rainMode(out.Candidates)
	return out
}

func (m RoleMap) String() string {
	return fmt.Sprintf("temp=%q rainDaily=%q rainHourly=%q wind=%q gust=%q",
		m.Candidates[RoleTemperature], m.Candidates[RoleRainDaily],
		m.Candidates[RoleRainHourly], m.Candidates[RoleWind], m.Candidates[RoleGust])
}
