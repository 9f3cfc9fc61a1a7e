package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptreserve/libs/config"
	"github.com/md-rashed-zaman/apptreserve/libs/redisx"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/booking"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/slotgrid"
)

type settings struct {
	Service  string
	Port     string
	GRPCPort string

	Grid     slotgrid.Grid
	Limits   booking.Limits
	CacheTTL time.Duration
	LockTTL  time.Duration

	Redis           redisx.Options
	CalendarBackend string
	DatabaseURL     string
	GoogleCalendar  string
	GoogleCreds     string
	KafkaBrokers    string
	KafkaTopic      string

	RateLimitPerMinute int
	RequestTimeout     time.Duration
	BodyLimitBytes     int64
}

// loadSettings reads the environment; any malformed engine option is an error.
func loadSettings() (settings, error) {
	var s settings
	var err error
	s.Service = config.String("SERVICE_NAME", "reservation-service")
	if s.Port, err = config.Port("PORT", "8086"); err != nil {
		return s, err
	}
	if s.GRPCPort, err = config.Port("GRPC_PORT", "9096"); err != nil {
		return s, err
	}

	loc, err := time.LoadLocation(config.String("BOOKING_TIMEZONE", "America/Sao_Paulo"))
	if err != nil {
		return s, fmt.Errorf("BOOKING_TIMEZONE: %w", err)
	}
	start, err := config.Int("BOOKING_START_HOUR", 8)
	if err != nil {
		return s, err
	}
	end, err := config.Int("BOOKING_END_HOUR", 17)
	if err != nil {
		return s, err
	}
	minutes, err := config.Int("SLOT_DURATION_MINUTES", 60)
	if err != nil {
		return s, err
	}
	s.Grid = slotgrid.Grid{StartHour: start, EndHour: end, Duration: time.Duration(minutes) * time.Minute, Location: loc}
	if err := s.Grid.Validate(); err != nil {
		return s, err
	}

	if s.Limits.PerSlot, err = positiveInt("MAX_BOOKINGS_PER_SLOT", 1); err != nil {
		return s, err
	}
	if s.Limits.PerDay, err = positiveInt("MAX_BOOKINGS_PER_DAY", 5); err != nil {
		return s, err
	}
	if s.Limits.LookaheadDays, err = positiveInt("LOOKAHEAD_DAYS", 7); err != nil {
		return s, err
	}
	if s.CacheTTL, err = config.Seconds("CACHE_TTL_SECONDS", 120*time.Second); err != nil {
		return s, err
	}
	if s.LockTTL, err = config.Seconds("LOCK_TTL_SECONDS", 300*time.Second); err != nil {
		return s, err
	}

	redisDB, err := config.Int("REDIS_DB", 0)
	if err != nil {
		return s, err
	}
	s.Redis = redisx.Options{
		Addr:     strings.TrimSpace(config.String("REDIS_ADDR", "")),
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	s.CalendarBackend = strings.ToLower(strings.TrimSpace(config.String("CALENDAR_BACKEND", "memory")))
	switch s.CalendarBackend {
	case "memory":
	case "postgres":
		if s.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
			return s, err
		}
	case "google":
		if s.GoogleCalendar, err = config.RequiredString("GOOGLE_CALENDAR_ID"); err != nil {
			return s, err
		}
		s.GoogleCreds = config.String("GOOGLE_CREDENTIALS_FILE", "")
	default:
		return s, fmt.Errorf("CALENDAR_BACKEND must be memory, postgres or google (got %q)", s.CalendarBackend)
	}

	s.KafkaBrokers = config.String("KAFKA_BROKERS", "")
	s.KafkaTopic = config.String("KAFKA_TOPIC_CONFIRMED", "booking.appointment.confirmed.v1")

	if s.RateLimitPerMinute, err = positiveInt("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return s, err
	}
	if s.RequestTimeout, err = config.Seconds("REQUEST_TIMEOUT_SECONDS", 15*time.Second); err != nil {
		return s, err
	}
	bodyLimit, err := positiveInt("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		return s, err
	}
	s.BodyLimitBytes = int64(bodyLimit)
	return s, nil
}

func positiveInt(key string, fallback int) (int, error) {
	n, err := config.Int(key, fallback)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive (got %d)", key, n)
	}
	return n, nil
}
