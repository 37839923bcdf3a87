package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	LogLevel string

	ListURL      string
	JobURLPrefix string
	APITimeout   time.Duration

	PageLimit  int
	PageDelay  time.Duration
	MaxPages   int
	SearchText string
	Facets     map[string][]string

	OutputDir    string
	OutputPrefix string
	OutputPath   string

	EnrichDetails bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	NATSURL         string
	NATSConnTimeout time.Duration
	NATSSubject     string

	ClickHouseDSN          string
	ClickHouseMaxOpenConns int
	ClickHouseMaxIdleConns int
	ClickHouseConnMaxLife  time.Duration
	ClickHouseUsername     string
	ClickHousePassword     string
	ClickHouseDatabase     string

	OTelCollectorURL string
}

func LoadConfig() (*Config, error) {
	facets, err := parseFacets(getEnvString("HARVEST_FACETS", ""))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Env:      getEnvString("HARVEST_ENV", "production"),
		LogLevel: getEnvString("LOG_LEVEL", "info"),

		ListURL:      getEnvString("HARVEST_LIST_URL", "https://pultegroup.wd1.myworkdayjobs.com/wday/cxs/pultegroup/PGI/jobs"),
		JobURLPrefix: getEnvString("HARVEST_JOB_URL_PREFIX", "https://pultegroup.wd1.myworkdayjobs.com/en-US/PGI/job/"),
		APITimeout:   getEnvDuration("HARVEST_API_TIMEOUT", 30*time.Second),

		PageLimit:  getEnvInt("HARVEST_PAGE_LIMIT", 20),
		PageDelay:  getEnvDuration("HARVEST_PAGE_DELAY", time.Second),
		MaxPages:   getEnvInt("HARVEST_MAX_PAGES", 0),
		SearchText: getEnvString("HARVEST_SEARCH_TEXT", ""),
		Facets:     facets,

		OutputDir:    getEnvString("HARVEST_OUTPUT_DIR", "."),
		OutputPrefix: getEnvString("HARVEST_OUTPUT_PREFIX", "pultegroup_jobs"),
		OutputPath:   getEnvString("HARVEST_OUTPUT_PATH", ""),

		EnrichDetails: getEnvBool("HARVEST_ENRICH_DETAILS", false),

		RedisAddr:     getEnvString("REDIS_ADDR", ""),
		RedisPassword: getEnvString("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 24*time.Hour),

		NATSURL:         getEnvString("NATS_URL", ""),
		NATSConnTimeout: getEnvDuration("NATS_CONN_TIMEOUT", 10*time.Second),
		NATSSubject:     getEnvString("NATS_SUBJECT", "jobs.harvested"),

		ClickHouseDSN:          getEnvString("CLICKHOUSE_DSN", ""),
		ClickHouseMaxOpenConns: getEnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 10),
		ClickHouseMaxIdleConns: getEnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 5),
		ClickHouseConnMaxLife:  getEnvDuration("CLICKHOUSE_CONN_MAX_LIFE", time.Hour),
		ClickHouseUsername:     getEnvString("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword:     getEnvString("CLICKHOUSE_PASSWORD", ""),
		ClickHouseDatabase:     getEnvString("CLICKHOUSE_DATABASE", "jobharvest"),

		OTelCollectorURL: getEnvString("OTEL_COLLECTOR_URL", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the settings the harvest loop cannot run without.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.ListURL) == "" {
		problems = append(problems, "HARVEST_LIST_URL is required")
	}
	if c.PageLimit <= 0 {
		problems = append(problems, fmt.Sprintf("HARVEST_PAGE_LIMIT must be positive, got %d", c.PageLimit))
	}
	if c.PageDelay < 0 {
		problems = append(problems, fmt.Sprintf("HARVEST_PAGE_DELAY must not be negative, got %s", c.PageDelay))
	}
	if c.MaxPages < 0 {
		problems = append(problems, fmt.Sprintf("HARVEST_MAX_PAGES must not be negative, got %d", c.MaxPages))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ResolveOutputPath returns the CSV destination: the explicit path when set,
// otherwise <OutputDir>/<OutputPrefix>_<YYYYMMDD_HHMMSS>.csv.
func (c *Config) ResolveOutputPath(now time.Time) string {
	if c.OutputPath != "" {
		return c.OutputPath
	}
	name := fmt.Sprintf("%s_%s.csv", c.OutputPrefix, now.Format("20060102_150405"))
	dir := strings.TrimSuffix(c.OutputDir, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// parseFacets reads "key=v1|v2,key2=v3" into an appliedFacets map.
func parseFacets(raw string) (map[string][]string, error) {
	facets := make(map[string][]string)
	if strings.TrimSpace(raw) == "" {
		return facets, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, values, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid config: HARVEST_FACETS entry %q must be key=value", pair)
		}
		for _, v := range strings.Split(values, "|") {
			if v = strings.TrimSpace(v); v != "" {
				facets[key] = append(facets[key], v)
			}
		}
	}
	return facets, nil
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
