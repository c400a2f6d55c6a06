package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port         int
	CacheBackend string
	RedisURL     string
	CacheDir     string

	DuneAPIKey        string
	CryptoPanicToken  string
	GitHubToken       string
	EtherscanAPIKeys  map[string]string
	ComplexTimeoutSec int
}

// scanKeyChains lists the chains whose explorer keys are read from
// {CHAIN}_SCAN_API_KEY env vars.
var scanKeyChains = []string{"ethereum", "bsc", "polygon", "arbitrum", "optimism", "avalanche"}

func Load() *Config {
	cfg := &Config{
		DuneAPIKey:       os.Getenv("DUNE_API_KEY"),
		CryptoPanicToken: os.Getenv("CRYPTOPANIC_API_TOKEN"),
		GitHubToken:      os.Getenv("GITHUB_API_TOKEN"),
	}

	cfg.Port = 8080
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Port = n
		}
	}

	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "memory"
	}
	if cfg.CacheBackend != "memory" && cfg.CacheBackend != "redis" && cfg.CacheBackend != "badger" {
		log.Printf("Warning: unsupported CACHE_BACKEND=%q, defaulting to memory", cfg.CacheBackend)
		cfg.CacheBackend = "memory"
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" && cfg.CacheBackend == "redis" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.CacheDir = strings.TrimSpace(os.Getenv("CACHE_DIR"))
	if cfg.CacheDir == "" {
		cfg.CacheDir = "data/cache"
	}

	if cfg.DuneAPIKey == "" {
		log.Println("Warning: DUNE_API_KEY not set, analytics queries will be degraded")
	}
	if cfg.CryptoPanicToken == "" {
		log.Println("Warning: CRYPTOPANIC_API_TOKEN not set, news queries run unauthenticated")
	}
	if cfg.GitHubToken == "" {
		log.Println("Warning: GITHUB_API_TOKEN not set, github queries run with a low quota")
	}

	cfg.EtherscanAPIKeys = make(map[string]string, len(scanKeyChains))
	for _, chain := range scanKeyChains {
		env := strings.ToUpper(chain) + "_SCAN_API_KEY"
		if key := os.Getenv(env); key != "" {
			cfg.EtherscanAPIKeys[chain] = key
		}
	}

	cfg.ComplexTimeoutSec = 60
	if v := strings.TrimSpace(os.Getenv("COMPLEX_QUERY_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ComplexTimeoutSec = n
		}
	}

	return cfg
}
