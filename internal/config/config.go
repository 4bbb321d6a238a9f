package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ucsindex/ucs/internal/calendar"
	"github.com/ucsindex/ucs/internal/domain"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL           string
	HTTPPort              string
	Location              *time.Location
	CalcSchedule          string
	CalcAssets            []domain.AssetID
	QuoteCacheTTL         time.Duration
	PreviousDayLookback   int
	ExtraHolidays         []time.Time
	GraphFile             string
	AdminAPIKey           string
	SheetsSpreadsheetID   string
	GoogleCredentialsJSON string
}

// Load reads configuration from environment variables with sensible defaults.
// An empty CalcAssets means the full index family.
func Load() Config {
	return Config{
		DatabaseURL:           envOrDefault("DATABASE_URL", ""),
		HTTPPort:              envOrDefault("HTTP_PORT", "8080"),
		Location:              envOrDefaultLocation("TIMEZONE", "America/Sao_Paulo"),
		CalcSchedule:          envOrDefault("CALC_SCHEDULE", "0 19 * * MON-FRI"),
		CalcAssets:            envAssetList("CALC_ASSETS"),
		QuoteCacheTTL:         envOrDefaultDuration("QUOTE_CACHE_TTL", 30*time.Second),
		PreviousDayLookback:   envOrDefaultInt("PREVIOUS_DAY_LOOKBACK", calendar.DefaultLookback),
		ExtraHolidays:         envDateList("EXTRA_HOLIDAYS"),
		GraphFile:             envOrDefault("GRAPH_FILE", ""),
		AdminAPIKey:           envOrDefault("ADMIN_API_KEY", ""),
		SheetsSpreadsheetID:   envOrDefault("SHEETS_SPREADSHEET_ID", ""),
		GoogleCredentialsJSON: envOrDefault("GOOGLE_CREDENTIALS_JSON", ""),
	}
}

// SheetsEnabled reports whether both Sheets settings are present.
func (c Config) SheetsEnabled() bool {
	return c.SheetsSpreadsheetID != "" && c.GoogleCredentialsJSON != ""
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

func envOrDefaultLocation(key, defaultVal string) *time.Location {
	name := envOrDefault(key, defaultVal)
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc
	}
	slog.Warn("invalid timezone env var, using default", "key", key, "value", name, "default", defaultVal)
	if loc, err = time.LoadLocation(defaultVal); err == nil {
		return loc
	}
	slog.Warn("default timezone unavailable, using UTC", "default", defaultVal, "error", err)
	return time.UTC
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envAssetList(key string) []domain.AssetID {
	parts := splitList(os.Getenv(key))
	if len(parts) == 0 {
		return nil
	}
	ids := make([]domain.AssetID, len(parts))
	for i, p := range parts {
		ids[i] = domain.AssetID(p)
	}
	return ids
}

func envDateList(key string) []time.Time {
	var dates []time.Time
	for _, p := range splitList(os.Getenv(key)) {
		d, err := domain.ParseDate(p)
		if err != nil {
			slog.Warn("invalid date in env var, skipping", "key", key, "value", p)
			continue
		}
		dates = append(dates, d)
	}
	return dates
}
