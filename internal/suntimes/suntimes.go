// Package suntimes computes the named sun-relative times used by time
// specifications: sunrise, sunset, the lamp switching times derived
// from sunset, the daily reset time, and the current time.
package suntimes

import (
	"fmt"
	"time"

	"github.com/nathan-osman/go-sunrise"

	"github.com/hearth-automation/hearth-core/internal/timespec"
)

// Default lamp policy: lamps come on a little before sunset and go off
// at a fixed late-evening time.
const (
	defaultLampOnOffset = -15 // minutes relative to sunset
	defaultLampOff      = "23:15"
	dayResetTime        = "04:00"
)

// Config describes the site location and lamp policy.
type Config struct {
	// Latitude and Longitude locate the site for sun calculations.
	Latitude  float64
	Longitude float64

	// Timezone is an IANA zone name ("America/Denver"). Empty means the
	// process-local zone.
	Timezone string

	// LampOnOffset is the lampOn offset from sunset in minutes
	// (negative = before sunset). Zero selects the default.
	LampOnOffset int

	// LampOff is the fixed "HH:MM" lamp-off time. Empty selects the
	// default.
	LampOff string
}

// Source derives named times for a given day. It implements
// timespec.SunSource.
type Source struct {
	lat, lon     float64
	loc          *time.Location
	lampOnOffset int
	lampOff      timespec.TimeOfDay
	dayReset     timespec.TimeOfDay
}

// New creates a Source for the configured site.
func New(cfg Config) (*Source, error) {
	loc := time.Local
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
		}
	}

	offset := cfg.LampOnOffset
	if offset == 0 {
		offset = defaultLampOnOffset
	}

	lampOffSpec := cfg.LampOff
	if lampOffSpec == "" {
		lampOffSpec = defaultLampOff
	}
	lampOff, ok := (&timespec.Resolver{}).Resolve(lampOffSpec)
	if !ok {
		return nil, fmt.Errorf("lamp off time %q is not a valid HH:MM time", lampOffSpec)
	}
	dayReset, _ := (&timespec.Resolver{}).Resolve(dayResetTime)

	return &Source{
		lat:          cfg.Latitude,
		lon:          cfg.Longitude,
		loc:          loc,
		lampOnOffset: offset,
		lampOff:      lampOff,
		dayReset:     dayReset,
	}, nil
}

// Times returns the named time table for the day containing now.
func (s *Source) Times(now time.Time) timespec.NamedTimes {
	rise, set := s.sunriseSunset(now)
	lampOn := set.AddMinutes(s.lampOnOffset)

	return timespec.NamedTimes{
		"sunrise":  rise,
		"sunset":   set,
		"lampOn":   lampOn,
		"lampOff":  s.lampOff,
		"dayReset": s.dayReset,
		"current":  timespec.FromTime(now.In(s.loc)),
	}
}

// IsNight reports whether now is before sunrise or after sunset.
func (s *Source) IsNight(now time.Time) bool {
	rise, set := s.sunriseSunset(now)
	local := now.In(s.loc)
	minute := local.Hour()*60 + local.Minute()
	return minute < rise.Hour*60+rise.Minute || minute > set.Hour*60+set.Minute
}

func (s *Source) sunriseSunset(now time.Time) (rise, set timespec.TimeOfDay) {
	local := now.In(s.loc)
	r, t := sunrise.SunriseSunset(s.lat, s.lon, local.Year(), local.Month(), local.Day())
	return timespec.FromTime(r.In(s.loc)), timespec.FromTime(t.In(s.loc))
}
