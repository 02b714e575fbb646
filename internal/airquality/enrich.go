package airquality

import "time"

// DailyClimate maps a UTC day ("2006-01-02") to reanalysis values that hold
// for every hour of that day.
type DailyClimate map[string]WeatherFields

// DayKey returns the DailyClimate key for t.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Enrich attaches weather fields to every entry. For each field the daily
// climate value of the entry's day wins; otherwise the single point reading is
// used. Fields neither source furnishes stay absent. Either source may be nil.
func Enrich(series *Series, climate DailyClimate, point *WeatherFields) {
	var fallback WeatherFields
	if point != nil {
		fallback = *point
	}

	for i := range series.Entries {
		day := climate[DayKey(series.Entries[i].Time)]
		series.Entries[i].Weather = WeatherFields{
			Temperature: firstSet(day.Temperature, fallback.Temperature),
			Humidity:    firstSet(day.Humidity, fallback.Humidity),
			WindSpeed:   firstSet(day.WindSpeed, fallback.WindSpeed),
			Pressure:    firstSet(day.Pressure, fallback.Pressure),
		}
	}
}

func firstSet(primary, secondary *float64) *float64 {
	if primary != nil {
		v := *primary
		return &v
	}
	if secondary != nil {
		v := *secondary
		return &v
	}
	return nil
}
