package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/leafmarket-checkout/internal/money"
	"github.com/noah-isme/leafmarket-checkout/internal/obs"
	"github.com/noah-isme/leafmarket-checkout/internal/shipping"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	FirestoreProjectID    string
	FirestoreEmulatorHost string
	JWKSURL               string
	JWKSRefresh           time.Duration

	RateTableURL      string
	RateTableCacheTTL time.Duration
	RateRefreshSpec   string
	RateTable         shipping.RateTable

	ShippingCreditAmount      money.Money
	ShippingCreditMinSubtotal money.Money
	ShippingCreditMinQuantity int
	MinimumOrderTotal         money.Money

	QuoteRateLimit  int64
	QuoteRateWindow time.Duration

	Obs Observability
}

// Observability groups logging, metrics and tracing switches.
type Observability struct {
	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var errs []error
	dollars := func(key, fallback string) money.Money {
		raw := valueOrDefault(k.String(key), fallback)
		m, err := money.ParseUSD(raw)
		if err != nil || m < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid amount %q", key, raw))
			return 0
		}
		return m
	}

	policy := shipping.DefaultPolicy()
	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		FirestoreProjectID:    strings.TrimSpace(k.String("FIRESTORE_PROJECT_ID")),
		FirestoreEmulatorHost: strings.TrimSpace(k.String("FIRESTORE_EMULATOR_HOST")),
		JWKSURL:               strings.TrimSpace(k.String("AUTH_JWKS_URL")),
		JWKSRefresh:           parseDuration(k.String("AUTH_JWKS_REFRESH"), "1h"),

		RateTableURL:      strings.TrimSpace(k.String("RATE_TABLE_URL")),
		RateTableCacheTTL: parseDuration(k.String("RATE_TABLE_CACHE_TTL"), "15m"),
		RateRefreshSpec:   valueOrDefault(k.String("RATE_REFRESH_SPEC"), "@every 10m"),
		RateTable: shipping.RateTable{
			UPSBase:                  dollars("UPS_BASE", "50"),
			UPSPerUnit:               dollars("UPS_PER_UNIT", "5"),
			UPSIncludedUnits:         parseInt(k.String("UPS_INCLUDED_UNITS"), 4),
			UPSNextDayBase:           dollars("UPS_NEXT_DAY_BASE", "30"),
			UPSNextDayPerUnit:        dollars("UPS_NEXT_DAY_PER_UNIT", "2"),
			AirBaseCargo:             dollars("AIR_BASE_CARGO", "100"),
			WholesaleAirCargoPerUnit: dollars("AIR_WHOLESALE_PER_UNIT", "15"),
		},

		ShippingCreditAmount:      dollars("SHIPPING_CREDIT_AMOUNT", money.FormatUSD(policy.CreditAmount)),
		ShippingCreditMinSubtotal: dollars("SHIPPING_CREDIT_MIN_SUBTOTAL", money.FormatUSD(policy.CreditMinSubtotal)),
		ShippingCreditMinQuantity: parseInt(k.String("SHIPPING_CREDIT_MIN_QTY"), policy.CreditMinQuantity),
		MinimumOrderTotal:         dollars("MINIMUM_ORDER_TOTAL", "1"),

		QuoteRateLimit:  int64(parseInt(k.String("QUOTE_RATE_LIMIT"), 60)),
		QuoteRateWindow: parseDuration(k.String("QUOTE_RATE_WINDOW"), "1m"),

		Obs: Observability{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "leafmarket"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), true),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     k.String("OBS_OTLP_ENDPOINT"),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
		},
	}

	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if cfg.FirestoreProjectID == "" {
		errs = append(errs, errors.New("FIRESTORE_PROJECT_ID is required"))
	}
	if err := cfg.RateTable.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("static rate table: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// ShippingPolicy returns the configured shipping credit rule.
func (c *Config) ShippingPolicy() shipping.Policy {
	return shipping.Policy{
		CreditMinSubtotal: c.ShippingCreditMinSubtotal,
		CreditMinQuantity: c.ShippingCreditMinQuantity,
		CreditAmount:      c.ShippingCreditAmount,
	}
}

// JWKS returns the signing key endpoint, defaulting to Firebase's.
func (c *Config) JWKS(fallback string) string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return fallback
}

// Tracing returns the tracer settings for one process of service.
func (c *Config) Tracing(service, component string) obs.TracingConfig {
	return obs.TracingConfig{
		ServiceName:   service,
		Component:     component,
		Environment:   c.AppEnv,
		Enabled:       c.Obs.TracingEnabled,
		Exporter:      c.Obs.TracingExporter,
		Endpoint:      c.Obs.OTLPEndpoint,
		SamplingRatio: c.Obs.SamplingRatio,
	}
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	d, err := time.ParseDuration(valueOrDefault(value, fallback))
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests overrides environment variables for the duration of a single Load.
// An empty value unsets the variable.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]*string, len(env))
	for key, value := range env {
		if prev, ok := os.LookupEnv(key); ok {
			original[key] = &prev
		} else {
			original[key] = nil
		}
		if err := setEnvVar(key, value); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]*string) error {
	var errs []error
	for key, value := range values {
		var err error
		if value == nil {
			err = os.Unsetenv(key)
		} else {
			err = os.Setenv(key, *value)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("restore env: %w", err)
	}
	return nil
}
