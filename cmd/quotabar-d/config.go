package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nyxkrage/quotabar/pkg/provider"
)

const (
	defaultAddr         = "127.0.0.1:8590"
	defaultPollInterval = 60 * time.Second
	defaultFetchTimeout = 30 * time.Second
)

var defaultStatusURLs = map[provider.ID]string{
	provider.Codex:  "https://status.openai.com",
	provider.Claude: "https://status.anthropic.com",
}

type Config struct {
	DBPath           string
	RedisAddr        string
	Addr             string
	PollInterval     time.Duration
	FetchTimeout     time.Duration
	DepletionEpsilon float64
	Shell            string
	Providers        []provider.ID
	StatusURLs       map[provider.ID]string

	DashboardURL    string
	CookiePath      string
	CookieImportCmd []string

	CreditsURL   string
	CreditsToken string
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaultDBPath := filepath.Join(cwd, "quotabar.db")

	dbPath := envOrDefault("QUOTABAR_DB_PATH", defaultDBPath)
	redisAddr := os.Getenv("QUOTABAR_REDIS_ADDR")
	addr := addrFromEnv(defaultAddr)
	providersSpec := envOrDefault("QUOTABAR_PROVIDERS", "codex,claude,gemini")
	shell := os.Getenv("QUOTABAR_SHELL")

	pollInterval := defaultPollInterval
	if v := os.Getenv("QUOTABAR_POLL_INTERVAL"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid QUOTABAR_POLL_INTERVAL: %w", err)
		}
		pollInterval = parsed
	}

	fetchTimeout := defaultFetchTimeout
	if v := os.Getenv("QUOTABAR_FETCH_TIMEOUT"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid QUOTABAR_FETCH_TIMEOUT: %w", err)
		}
		fetchTimeout = parsed
	}

	epsilon := 0.0
	if v := os.Getenv("QUOTABAR_DEPLETION_EPSILON"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			return Config{}, fmt.Errorf("invalid QUOTABAR_DEPLETION_EPSILON: %q", v)
		}
		epsilon = parsed
	}

	flagSet := flag.NewFlagSet("quotabar-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagDB := flagSet.String("db", dbPath, "path to SQLite snapshot cache")
	flagRedis := flagSet.String("redis", redisAddr, "redis address for a shared snapshot cache (overrides -db)")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagPollInterval := flagSet.String("poll-interval", pollInterval.String(), "provider poll interval (0 = manual refresh only)")
	flagProviders := flagSet.String("providers", providersSpec, "comma-separated providers to poll")
	flagShell := flagSet.String("shell", shell, "login shell for PATH capture (default $SHELL)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	pollIntervalParsed, err := time.ParseDuration(*flagPollInterval)
	if err != nil || pollIntervalParsed < 0 {
		return Config{}, fmt.Errorf("invalid poll interval: %q", *flagPollInterval)
	}

	providers, err := parseProviders(*flagProviders)
	if err != nil {
		return Config{}, err
	}

	statusURLs := make(map[provider.ID]string, len(providers))
	for _, id := range providers {
		url := envOrDefault(statusURLEnv(id), defaultStatusURLs[id])
		if url != "" {
			statusURLs[id] = url
		}
	}

	homeDir, _ := os.UserHomeDir()
	cookiePath := envOrDefault("QUOTABAR_COOKIE_FILE", filepath.Join(homeDir, ".quotabar", "cookies"))

	config := Config{
		DBPath:           resolvePath(*flagDB, cwd),
		RedisAddr:        strings.TrimSpace(*flagRedis),
		Addr:             strings.TrimSpace(*flagAddr),
		PollInterval:     pollIntervalParsed,
		FetchTimeout:     fetchTimeout,
		DepletionEpsilon: epsilon,
		Shell:            strings.TrimSpace(*flagShell),
		Providers:        providers,
		StatusURLs:       statusURLs,
		DashboardURL:     strings.TrimSpace(os.Getenv("QUOTABAR_DASHBOARD_URL")),
		CookiePath:       resolvePath(cookiePath, cwd),
		CookieImportCmd:  strings.Fields(os.Getenv("QUOTABAR_COOKIE_IMPORT_CMD")),
		CreditsURL:       strings.TrimSpace(os.Getenv("QUOTABAR_CREDITS_URL")),
		CreditsToken:     os.Getenv("QUOTABAR_CREDITS_TOKEN"),
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}
	if len(config.Providers) == 0 {
		return Config{}, errors.New("at least one provider must be enabled")
	}

	return config, nil
}

func parseProviders(spec string) ([]provider.ID, error) {
	var out []provider.ID
	seen := make(map[provider.ID]bool)
	for _, part := range strings.Split(spec, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		id := provider.ID(name)
		if !id.Valid() {
			return nil, fmt.Errorf("unknown provider: %s", name)
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

func statusURLEnv(id provider.ID) string {
	return "QUOTABAR_" + strings.ToUpper(string(id)) + "_STATUS_URL"
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("QUOTABAR_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("QUOTABAR_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
