package handle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"paperai/api/internal/gateway"
	"paperai/api/internal/paper"
	"paperai/api/internal/store"
)

// Generator is the gateway as seen by the HTTP layer.
type Generator interface {
	Generate(ctx context.Context, clientKey string, sub gateway.Submission) paper.Outcome
}

// PaperStore reads the generation audit log.
type PaperStore interface {
	Get(ctx context.Context, id uuid.UUID) (*store.Record, error)
	Recent(ctx context.Context, limit int) ([]store.Record, error)
}

type Options struct {
	ClientHeader    string
	GenerateTimeout time.Duration
	MaxBodyBytes    int64
	// Ping backs /healthz when set (e.g. a database ping).
	Ping func(ctx context.Context) error
	// PapersToken guards the /v1/papers read API; the routes are not
	// mounted without it.
	PapersToken string
}

type Handle struct {
	gw     Generator
	papers PaperStore
	opts   Options
}

// New builds the handlers; papers may be nil when no audit store is configured.
func New(gw Generator, papers PaperStore, opts Options) *Handle {
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 180 * time.Second
	}
	return &Handle{gw: gw, papers: papers, opts: opts}
}
