// Package actions wires the curator's modules together.
package actions

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/govcurator/src/actions/core"
	curatormodule "github.com/stake-plus/govcurator/src/actions/curator"
	"github.com/stake-plus/govcurator/src/api"
	"github.com/stake-plus/govcurator/src/archive"
	sharedconfig "github.com/stake-plus/govcurator/src/config"
	"github.com/stake-plus/govcurator/src/curation"
	shareddata "github.com/stake-plus/govcurator/src/data"
	"github.com/stake-plus/govcurator/src/engine"
	"github.com/stake-plus/govcurator/src/lock"
	"github.com/stake-plus/govcurator/src/store"
	"gorm.io/gorm"
)

// Stores are the persistent pieces shared by every module.
type Stores struct {
	Repository *curation.Repository
	Archive    *archive.Store
}

// Migrate creates or updates every table the curator uses.
func Migrate(db *gorm.DB) error {
	if err := shareddata.Migrate(db); err != nil {
		return fmt.Errorf("actions: migrate settings: %w", err)
	}
	if err := store.NewGorm(db).Migrate(); err != nil {
		return fmt.Errorf("actions: migrate documents: %w", err)
	}
	if err := archive.NewStore(db).Migrate(); err != nil {
		return fmt.Errorf("actions: migrate archive: %w", err)
	}
	return nil
}

// OpenStores builds the repository and archive over db.
func OpenStores(db *gorm.DB) (*Stores, error) {
	reg := engine.NewRegistry()
	if err := curation.Register(reg); err != nil {
		return nil, fmt.Errorf("actions: register schemas: %w", err)
	}
	eng, err := engine.New(reg, store.NewGorm(db))
	if err != nil {
		return nil, fmt.Errorf("actions: init engine: %w", err)
	}
	return &Stores{
		Repository: curation.NewRepository(eng),
		Archive:    archive.NewStore(db),
	}, nil
}

func lockerFor(cfg *sharedconfig.CuratorConfig, rdb *redis.Client) lock.Locker {
	if cfg.RedisLocks && rdb != nil {
		log.Printf("actions: using redis message locks (ttl=%v)", cfg.LockTTL)
		return lock.NewRedisLocker(rdb, cfg.LockTTL)
	}
	return lock.NewKeyedMutex()
}

func sinkFor(cfg *sharedconfig.CuratorConfig, stores *Stores, rdb *redis.Client) archive.Sink {
	sinks := archive.Multi{stores.Archive}
	if cfg.RelayApproved && rdb != nil {
		log.Printf("actions: relaying approved entries to stream %s", archive.StreamApproved)
		sinks = append(sinks, archive.BestEffort{Sink: archive.NewStreamPublisher(rdb)})
	}
	return sinks
}

// StartAll wires up enabled modules and starts the manager. rdb may be nil.
func StartAll(ctx context.Context, db *gorm.DB, rdb *redis.Client, cfg *sharedconfig.CuratorConfig) (*core.Manager, error) {
	mgr := core.NewManager()

	stores, err := OpenStores(db)
	if err != nil {
		return nil, err
	}

	if cfg.Enabled {
		mod, err := curatormodule.NewModule(cfg, curatormodule.Dependencies{
			Repository: stores.Repository,
			Locks:      lockerFor(cfg, rdb),
			Archive:    sinkFor(cfg, stores, rdb),
		})
		if err != nil {
			return nil, fmt.Errorf("actions: init curator module: %w", err)
		}
		if err := mgr.Add(mod); err != nil {
			return nil, fmt.Errorf("actions: add curator module: %w", err)
		}
	} else {
		log.Printf("actions: curator module disabled via configuration")
	}

	if cfg.APIListen != "" {
		mod := api.NewModule(api.Config{
			Listen:        cfg.APIListen,
			Origins:       cfg.APIOrigins,
			RatePerMinute: cfg.APIRateLimit,
		}, stores.Archive, stores.Repository)
		if err := mgr.Add(mod); err != nil {
			return nil, fmt.Errorf("actions: add api module: %w", err)
		}
	} else {
		log.Printf("actions: api disabled, set API_LISTEN to enable it")
	}

	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}

	return mgr, nil
}
