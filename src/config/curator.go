package config

import (
	"strconv"
	"time"

	"gorm.io/gorm"
)

// CuratorConfig holds everything the curator bot needs at startup.
type CuratorConfig struct {
	Base
	Emoji            string
	CuratorRoleID    string
	CuratorRoleName  string
	OwnerID          int64
	InviteURL        string
	AnonymousIconURL string
	LockTTL          time.Duration
	RedisLocks       bool
	RelayApproved    bool
	APIListen        string
	APIOrigins       []string
	APIRateLimit     int
	Enabled          bool
}

// LoadCuratorConfig loads curator configuration
func LoadCuratorConfig(db *gorm.DB) CuratorConfig {
	base := LoadBase(db)

	rate, err := strconv.Atoi(GetSetting("api_rate_limit", "API_RATE_LIMIT", "120"))
	if err != nil || rate < 0 {
		rate = 120
	}

	ttl, err := time.ParseDuration(GetSetting("lock_ttl", "LOCK_TTL", "30s"))
	if err != nil || ttl <= 0 {
		ttl = 30 * time.Second
	}

	return CuratorConfig{
		Base:             base,
		Emoji:            GetSetting("curator_emoji", "CURATOR_EMOJI", "🔭"),
		CuratorRoleID:    GetSetting("curator_role_id", "CURATOR_ROLE_ID", ""),
		CuratorRoleName:  GetSetting("curator_role_name", "CURATOR_ROLE_NAME", "Curator"),
		OwnerID:          getInt64Setting("owner_id", "OWNER_ID"),
		InviteURL:        GetSetting("invite_url", "INVITE_URL", ""),
		AnonymousIconURL: GetSetting("anonymous_icon_url", "ANONYMOUS_ICON_URL", ""),
		LockTTL:          ttl,
		RedisLocks:       base.RedisURL != "" && getBoolSetting("redis_locks", "REDIS_LOCKS", true),
		RelayApproved:    base.RedisURL != "" && getBoolSetting("relay_approved", "RELAY_APPROVED", true),
		APIListen:        GetSetting("api_listen", "API_LISTEN", ""),
		APIOrigins:       splitList(GetSetting("api_origins", "API_ORIGINS", "")),
		APIRateLimit:     rate,
		Enabled:          getBoolSetting("enable_curator", "ENABLE_CURATOR", true),
	}
}
