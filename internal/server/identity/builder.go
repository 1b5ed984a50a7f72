package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sqlidentity/internal/common"
	"github.com/dmitrijs2005/sqlidentity/internal/logging"
	"github.com/dmitrijs2005/sqlidentity/internal/server/actor"
	"github.com/dmitrijs2005/sqlidentity/internal/server/repositories/repomanager"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/http/httpguts"
)

// Builder configures a Policy. Its methods return modified copies:
//
//	p, err := identity.NewBuilder("postgres://app@db/ids").
//		PoolSize(8).
//		ResponseHeader("X-Session").
//		Finish(ctx)
type Builder struct {
	uri        string
	variant    repomanager.Variant
	variantErr error
	poolSize   int
	header     string
	timeout    time.Duration
	log        logging.Logger
	reg        prometheus.Registerer
}

// NewBuilder picks the backend from uri: mysql:// and postgres:// or
// postgresql:// select those servers, anything else is a SQLite path.
func NewBuilder(uri string) Builder {
	return Builder{
		uri:      uri,
		variant:  repomanager.VariantFromURI(uri),
		poolSize: common.DefaultPoolSize,
		header:   common.DefaultResponseHeaderName,
		timeout:  actor.DefaultTimeout,
	}
}

// PoolSize sets both the number of connections and of actor workers.
func (b Builder) PoolSize(n int) Builder {
	b.poolSize = n
	return b
}

// ResponseHeader names the header that carries newly issued tokens.
func (b Builder) ResponseHeader(name string) Builder {
	b.header = name
	return b
}

// SQLite, MySQL and PostgreSQL force a backend regardless of the URI.
func (b Builder) SQLite() Builder     { return b.force(repomanager.VariantSQLite) }
func (b Builder) MySQL() Builder      { return b.force(repomanager.VariantMySQL) }
func (b Builder) PostgreSQL() Builder { return b.force(repomanager.VariantPostgres) }

// Variant forces a backend by name. An empty name keeps the current choice;
// an unknown one makes Finish fail.
func (b Builder) Variant(name string) Builder {
	if name == "" {
		return b
	}
	v, err := repomanager.ParseVariant(name)
	if err != nil {
		b.variantErr = err
		return b
	}
	return b.force(v)
}

func (b Builder) force(v repomanager.Variant) Builder {
	b.variant = v
	b.variantErr = nil
	return b
}

// Logger sets the logger used by the policy and its store.
func (b Builder) Logger(l logging.Logger) Builder {
	b.log = l
	return b
}

// Registerer receives the store metrics. Nil disables registration.
func (b Builder) Registerer(r prometheus.Registerer) Builder {
	b.reg = r
	return b
}

// OperationTimeout bounds each store call.
func (b Builder) OperationTimeout(d time.Duration) Builder {
	b.timeout = d
	return b
}

func (b Builder) validate() error {
	if b.variantErr != nil {
		return b.variantErr
	}
	if b.uri == "" {
		return fmt.Errorf("%w: empty database uri", common.ErrInvalidConfig)
	}
	if b.poolSize < 1 {
		return fmt.Errorf("%w: pool size must be positive, got %d", common.ErrInvalidConfig, b.poolSize)
	}
	if !httpguts.ValidHeaderFieldName(b.header) {
		return fmt.Errorf("%w: invalid response header %q", common.ErrInvalidConfig, b.header)
	}
	if b.timeout <= 0 {
		return fmt.Errorf("%w: operation timeout must be positive", common.ErrInvalidConfig)
	}
	return nil
}

// Finish opens the pool, checks connectivity, applies migrations and starts
// the persistence actor.
func (b Builder) Finish(ctx context.Context) (*Policy, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	log := b.log
	if log == nil {
		log = logging.NewDiscardLogger()
	}

	manager, err := repomanager.New(b.variant)
	if err != nil {
		return nil, err
	}

	db, err := manager.Open(b.uri, b.poolSize)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping (%s): %w", b.variant, err)
	}

	if err := manager.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	a, err := actor.New(manager.Identities(db), db, actor.Config{
		Workers:    b.poolSize,
		Timeout:    b.timeout,
		Registerer: b.reg,
		Logger:     log,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info(ctx, "identity policy ready",
		"variant", manager.Variant().String(),
		"pool_size", b.poolSize,
		"response_header", b.header,
	)
	return NewPolicy(a, b.header, log, a), nil
}
