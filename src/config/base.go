package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/stake-plus/govcurator/src/data"
	"gorm.io/gorm"
)

// Base contains common configuration fields
type Base struct {
	Token       string
	GuildIDs    []string
	DatabaseDSN string
	RedisURL    string
}

// LoadBase loads common configuration (discord token, guild IDs, database DSN)
func LoadBase(db *gorm.DB) Base {
	if db != nil {
		if err := data.LoadSettings(db); err != nil {
			log.Printf("config: load settings: %v", err)
		}
	}

	return Base{
		Token:       GetSetting("discord_token", "DISCORD_TOKEN", ""),
		GuildIDs:    splitList(GetSetting("guild_ids", "GUILD_IDS", "")),
		DatabaseDSN: data.DSN(),
		RedisURL:    GetSetting("redis_url", "REDIS_URL", ""),
	}
}

// GetSetting retrieves a setting with env fallback
func GetSetting(name, envKey, defaultValue string) string {
	val := data.GetSetting(name)
	if val == "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = defaultValue
	}
	return val
}

func getBoolSetting(settingKey, envKey string, defaultValue bool) bool {
	if v := data.GetSetting(settingKey); v != "" {
		return parseBoolDefault(v, defaultValue)
	}
	if envKey != "" {
		if v := os.Getenv(envKey); v != "" {
			return parseBoolDefault(v, defaultValue)
		}
	}
	return defaultValue
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getInt64Setting(settingKey, envKey string) int64 {
	raw := strings.TrimSpace(GetSetting(settingKey, envKey, ""))
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("config: %s is not an id: %v", settingKey, err)
		return 0
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
