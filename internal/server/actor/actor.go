// Package actor serializes identity persistence onto a fixed pool of
// workers. Callers submit a request and wait for its reply; every request is
// exactly one repository call.
package actor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/sqlidentity/internal/common"
	"github.com/dmitrijs2005/sqlidentity/internal/logging"
	"github.com/dmitrijs2005/sqlidentity/internal/server/models"
	"github.com/dmitrijs2005/sqlidentity/internal/server/repositories/identities"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Operation names, used in errors, logs and metric labels.
const (
	OpFind   = "find"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// DefaultTimeout bounds a store call when Config.Timeout is unset.
const DefaultTimeout = 5 * time.Second

// OpError reports which store operation failed.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("identity store %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying store error.
func (e *OpError) Unwrap() error { return e.Err }

// Config tunes an Actor. Zero values fall back to defaults.
type Config struct {
	Workers    int
	Timeout    time.Duration
	Registerer prometheus.Registerer
	Logger     logging.Logger
}

type request struct {
	ctx  context.Context
	op   string
	fn   func(ctx context.Context) error
	done chan error
}

// Actor runs identity repository calls on Config.Workers goroutines.
type Actor struct {
	repo    identities.Repository
	db      io.Closer
	timeout time.Duration
	log     logging.Logger
	metrics *metrics

	reqs chan request
	quit chan struct{}

	g         errgroup.Group
	closeOnce sync.Once
	closeErr  error
}

// New starts the workers. db, when not nil, is closed by Close after the
// workers have drained.
func New(repo identities.Repository, db io.Closer, cfg Config) (*Actor, error) {
	if repo == nil {
		return nil, fmt.Errorf("%w: nil repository", common.ErrInvalidConfig)
	}
	if cfg.Workers < 1 {
		cfg.Workers = common.DefaultPoolSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscardLogger()
	}

	m, err := newMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}

	a := &Actor{
		repo:    repo,
		db:      db,
		timeout: cfg.Timeout,
		log:     cfg.Logger.With("component", "actor"),
		metrics: m,
		reqs:    make(chan request),
		quit:    make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		a.g.Go(a.work)
	}
	return a, nil
}

func (a *Actor) work() error {
	for {
		select {
		case <-a.quit:
			return nil
		case req := <-a.reqs:
			a.handle(req)
		}
	}
}

func (a *Actor) handle(req request) {
	// a caller that stops waiting must not abort a dispatched write
	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.ctx), a.timeout)
	defer cancel()

	start := time.Now()
	err := req.fn(ctx)
	elapsed := time.Since(start)

	a.metrics.observe(req.op, resultLabel(err), elapsed)
	a.log.Debug(req.ctx, "store operation", "op", req.op, "duration", elapsed, "error", err)

	req.done <- err
}

func (a *Actor) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	req := request{ctx: ctx, op: op, fn: fn, done: make(chan error, 1)}

	select {
	case <-a.quit:
		a.metrics.observe(op, resultClosed, 0)
		return &OpError{Op: op, Err: common.ErrActorClosed}
	case <-ctx.Done():
		return &OpError{Op: op, Err: ctx.Err()}
	case a.reqs <- req:
	}

	select {
	case err := <-req.done:
		if err != nil {
			return &OpError{Op: op, Err: err}
		}
		return nil
	case <-ctx.Done():
		return &OpError{Op: op, Err: ctx.Err()}
	}
}

// Find loads the identity stored under token. A missing record is not an
// error: it yields (nil, nil).
func (a *Actor) Find(ctx context.Context, token string) (*models.Identity, error) {
	var found *models.Identity
	err := a.do(ctx, OpFind, func(ctx context.Context) error {
		var err error
		found, err = a.repo.Find(ctx, token)
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Create inserts id and returns the stored copy with its assigned ID.
func (a *Actor) Create(ctx context.Context, id *models.Identity) (*models.Identity, error) {
	var created *models.Identity
	err := a.do(ctx, OpCreate, func(ctx context.Context) error {
		var err error
		created, err = a.repo.Create(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update rewrites the record with id.ID.
func (a *Actor) Update(ctx context.Context, id *models.Identity) error {
	return a.do(ctx, OpUpdate, func(ctx context.Context) error {
		return a.repo.Update(ctx, id)
	})
}

// Delete removes the record stored under token, if any.
func (a *Actor) Delete(ctx context.Context, token string) error {
	return a.do(ctx, OpDelete, func(ctx context.Context) error {
		return a.repo.Delete(ctx, token)
	})
}

// Close stops accepting requests, waits for in-flight ones and closes the
// database. It is safe to call more than once.
func (a *Actor) Close() error {
	a.closeOnce.Do(func() {
		close(a.quit)
		_ = a.g.Wait()
		if a.db != nil {
			a.closeErr = a.db.Close()
		}
	})
	return a.closeErr
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, context.DeadlineExceeded):
		return resultTimeout
	default:
		return resultError
	}
}
