package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

var API_ENV = os.Getenv("API_ENV")

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

// ReservationTTL is how long a pending, unpaid booking keeps its seats
// before the reaper releases them.
func ReservationTTL() time.Duration {
	return durationEnv("RESERVATION_TTL", 1*time.Hour)
}

func ReaperInterval() time.Duration {
	return durationEnv("REAPER_INTERVAL", 5*time.Minute)
}

// ReserveMaxRetries bounds the ledger's retry loop on serialization
// conflicts before it surfaces a service_unavailable error.
func ReserveMaxRetries() int {
	return intEnv("RESERVE_MAX_RETRIES", 3)
}

// HoldSeatsOnPaymentFailure keeps a booking's seats reserved after a failed
// payment attempt so the holder can retry; the reaper still frees them once
// the reservation TTL runs out. Off by default: failure releases seats.
func HoldSeatsOnPaymentFailure() bool {
	return os.Getenv("HOLD_SEATS_ON_PAYMENT_FAILURE") == "true"
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func intEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
