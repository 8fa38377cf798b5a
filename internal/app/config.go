package app

import (
	"strings"
	"time"

	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/utils"
)

type Config struct {
	Port              string
	GroupRegistryPath string

	// Extractor selects "rules" or "llm". The llm extractor still falls
	// back to rules when the AI endpoint is unavailable.
	Extractor       string
	ExtractionLease time.Duration

	RedisEnabled   bool
	SearchCacheTTL time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	port := utils.GetEnv("PORT", "8080", log)
	registryPath := utils.GetEnv("GROUP_REGISTRY_PATH", "", log)
	extractor := strings.ToLower(utils.GetEnv("EXTRACTOR", "rules", log))
	leaseSeconds := utils.GetEnvAsInt("EXTRACTION_LEASE_SECONDS", 600, log)
	redisEnabled := strings.EqualFold(utils.GetEnv("REDIS_ENABLED", "false", log), "true")
	cacheTTLSeconds := utils.GetEnvAsInt("SEARCH_CACHE_TTL_SECONDS", 30, log)

	return Config{
		Port:              port,
		GroupRegistryPath: registryPath,
		Extractor:         extractor,
		ExtractionLease:   time.Duration(leaseSeconds) * time.Second,
		RedisEnabled:      redisEnabled,
		SearchCacheTTL:    time.Duration(cacheTTLSeconds) * time.Second,
	}
}
