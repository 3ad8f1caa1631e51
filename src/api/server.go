// Package api serves the research archive over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stake-plus/govcurator/src/actions/core"
	"github.com/stake-plus/govcurator/src/archive"
	"github.com/stake-plus/govcurator/src/curation"
)

var _ core.Module = (*Module)(nil)

const shutdownTimeout = 10 * time.Second

type Config struct {
	Listen  string
	Origins []string
	// RatePerMinute caps requests per client; zero disables limiting.
	RatePerMinute int
}

type Module struct {
	cfg     Config
	limiter *RateLimiter
	srv     *http.Server
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewModule(cfg Config, store *archive.Store, repo *curation.Repository) *Module {
	gin.SetMode(gin.ReleaseMode)

	var limiter *RateLimiter
	if cfg.RatePerMinute > 0 {
		limiter = NewRateLimiter(cfg.RatePerMinute, time.Minute)
	}
	return &Module{
		cfg:     cfg,
		limiter: limiter,
		srv: &http.Server{
			Addr:              cfg.Listen,
			Handler:           NewRouter(cfg.Origins, limiter, store, repo),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Name implements core.Module.
func (m *Module) Name() string { return "api" }

func (m *Module) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.cfg.Listen)
	if err != nil {
		return fmt.Errorf("api: listen on %s: %w", m.cfg.Listen, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	if m.limiter != nil {
		go m.limiter.Run(runCtx)
	}

	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("api: serve: %v", err)
		}
	}()
	log.Printf("api: listening on %s", ln.Addr())
	return nil
}

func (m *Module) Stop(ctx context.Context) {
	if m.cancel != nil {
		m.cancel()
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := m.srv.Shutdown(shutCtx); err != nil {
		log.Printf("api: shutdown: %v", err)
	}
	if m.done != nil {
		<-m.done
	}
}
