package features

import "math"

// Column names used in training-set output.
const (
	ColDivision          = "division"
	ColWeatherTemp       = "weather_temp"
	ColWeatherRain3h     = "weather_rain_3h"
	ColWeatherVisibility = "weather_visibility"
	ColWeatherWindSpeed  = "weather_wind_speed"
	ColSunriseHour       = "sunrise_hour"
	ColMonth             = "month"
	ColHour              = "hour"
	ColDayOfWeek         = "day_of_week"
	ColDay               = "day"
	ColMinute            = "minute"
	ColStreetName        = "street_name"
	ColRoadCurve         = "road_curve"
	ColRoadLength        = "road_length"
	ColRoadVolume        = "road_volume"
	ColSignalsNear       = "signals_near"
	ColRoadSpeed         = "road_speed"
	ColPopulationDensity = "population_density"
	ColMedianAge         = "median_age"
	ColIsAccident        = "is_accident"
)

// GenericStreet names rows whose address matched no reference road.
const GenericStreet = "GENERIC_STREET"

// Vector is the derived feature row for one accident record or synthesized
// negative. Missing numeric values are NaN until imputation.
type Vector struct {
	EventNo  string
	Division string

	Month     int
	Day       int
	Hour      int
	Minute    int
	DayOfWeek int // Monday is 0

	StreetName  string
	RoadCurve   float64
	RoadLength  float64
	RoadVolume  float64
	SignalsNear int
	RoadSpeed   float64

	MedianAge         float64
	PopulationDensity float64

	WeatherTemp       float64
	WeatherRain3h     float64
	WeatherVisibility float64
	WeatherWindSpeed  float64
	SunriseHour       float64

	IsAccident int
}

// Key is the (day, hour, street) triple used for negative-sample collision checks.
type Key struct {
	Day    int
	Hour   int
	Street string
}

func (v Vector) Key() Key {
	return Key{Day: v.Day, Hour: v.Hour, Street: v.StreetName}
}

// Values returns the vector as a column map. NaN numerics and an empty
// division are left out, so absent columns look the same as columns the
// upstream feed never sent.
func (v Vector) Values() map[string]any {
	m := map[string]any{
		ColMonth:       v.Month,
		ColDay:         v.Day,
		ColHour:        v.Hour,
		ColMinute:      v.Minute,
		ColDayOfWeek:   v.DayOfWeek,
		ColStreetName:  v.StreetName,
		ColSignalsNear: v.SignalsNear,
		ColIsAccident:  v.IsAccident,
	}
	if v.Division != "" {
		m[ColDivision] = v.Division
	}
	for _, c := range numericColumns {
		if x := *c.field(&v); !math.IsNaN(x) {
			m[c.name] = x
		}
	}
	return m
}

type numericColumn struct {
	name  string
	field func(*Vector) *float64
}

// numericColumns lists the float columns that take part in mean imputation.
var numericColumns = []numericColumn{
	{ColWeatherTemp, func(v *Vector) *float64 { return &v.WeatherTemp }},
	{ColWeatherRain3h, func(v *Vector) *float64 { return &v.WeatherRain3h }},
	{ColWeatherVisibility, func(v *Vector) *float64 { return &v.WeatherVisibility }},
	{ColWeatherWindSpeed, func(v *Vector) *float64 { return &v.WeatherWindSpeed }},
	{ColSunriseHour, func(v *Vector) *float64 { return &v.SunriseHour }},
	{ColRoadCurve, func(v *Vector) *float64 { return &v.RoadCurve }},
	{ColRoadLength, func(v *Vector) *float64 { return &v.RoadLength }},
	{ColRoadVolume, func(v *Vector) *float64 { return &v.RoadVolume }},
	{ColRoadSpeed, func(v *Vector) *float64 { return &v.RoadSpeed }},
	{ColPopulationDensity, func(v *Vector) *float64 { return &v.PopulationDensity }},
	{ColMedianAge, func(v *Vector) *float64 { return &v.MedianAge }},
}
