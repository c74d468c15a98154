package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/gymgate/server/internal/gymgate/clock"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC health listener

	// Storage
	Env    string // "dev" | "prod"
	Store  string // "sqlite" | "memory"
	DBPath string // e.g. "./data/gymgate.db"

	// DevSeedIdentifier is upserted as an active member on dev sqlite starts.
	DevSeedIdentifier string

	// Access rules
	TimeZone               string
	Location               *time.Location
	MinTimeBetweenAccesses time.Duration

	// Fixtures
	AdminKey string
	Demo     bool

	StorageTimeout time.Duration

	// Scan endpoint rate limit, per remote IP.
	ScanRatePerSec float64
	ScanRateBurst  int

	// Cron spec for the weekly counter sweep; empty disables it.
	WeeklyResetSchedule string

	LogRedaction bool
	LogHashSalt  string
}

// LoadDotEnv reads .env into the process environment if present. Variables
// already set win.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// FromEnv reads GYMGATE_* variables. Malformed numbers fall back to their
// defaults; an unknown timezone is an error.
func FromEnv() (Config, error) {
	env := strings.ToLower(getenvDefault("GYMGATE_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	storeKind := strings.ToLower(getenvDefault("GYMGATE_STORE", "sqlite"))
	if storeKind != "sqlite" && storeKind != "memory" {
		return Config{}, fmt.Errorf("GYMGATE_STORE: unknown store %q", storeKind)
	}

	tz := getenvDefault("GYMGATE_TIMEZONE", clock.DefaultTimeZone)
	loc, err := clock.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("GYMGATE_TIMEZONE: %w", err)
	}

	return Config{
		HTTPAddr: getenvDefault("GYMGATE_HTTP_ADDR", ":8080"),
		GRPCAddr: getenvOptional("GYMGATE_GRPC_ADDR", ":9090"),

		Env:    env,
		Store:  storeKind,
		DBPath: getenvDefault("GYMGATE_DB_PATH", "./data/gymgate.db"),

		DevSeedIdentifier: strings.TrimSpace(os.Getenv("GYMGATE_DEV_SEED_IDENTIFIER")),

		TimeZone:               tz,
		Location:               loc,
		MinTimeBetweenAccesses: time.Duration(getenvInt("GYMGATE_MIN_TIME_BETWEEN_ACCESSES", 10)) * time.Minute,

		AdminKey: strings.TrimSpace(os.Getenv("GYMGATE_ADMIN_KEY")),
		Demo:     getenvBool("GYMGATE_DEMO", false),

		StorageTimeout: time.Duration(getenvInt("GYMGATE_STORAGE_TIMEOUT_MS", 3000)) * time.Millisecond,

		ScanRatePerSec: getenvFloat("GYMGATE_SCAN_RATE_PER_SEC", 5),
		ScanRateBurst:  getenvInt("GYMGATE_SCAN_RATE_BURST", 10),

		WeeklyResetSchedule: getenvOptional("GYMGATE_WEEKLY_RESET_SCHEDULE", "0 0 * * 1"),

		LogRedaction: getenvBool("GYMGATE_LOG_REDACTION", true),
		LogHashSalt:  os.Getenv("GYMGATE_LOG_HASH_SALT"),
	}, nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

// getenvOptional distinguishes unset (default) from set-but-empty (disabled).
func getenvOptional(key, def string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return strings.TrimSpace(v)
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}

func getenvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
