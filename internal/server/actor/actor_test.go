package actor

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/sqlidentity/internal/common"
	"github.com/dmitrijs2005/sqlidentity/internal/server/models"
	"github.com/dmitrijs2005/sqlidentity/internal/server/repositories/identities"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE identities (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    token      TEXT NOT NULL UNIQUE,
    userid     TEXT NOT NULL,
    ip         TEXT,
    user_agent TEXT,
    created    TIMESTAMP NOT NULL
);`

func newSQLiteActor(t *testing.T, workers int) *Actor {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	a, err := New(identities.NewSQLiteRepository(db), db, Config{Workers: workers})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// fakeRepo lets tests control each call.
type fakeRepo struct {
	mu       sync.Mutex
	inFlight int32
	maxSeen  int32
	calls    atomic.Int32

	gate     chan struct{}
	findErr  error
	createFn func(ctx context.Context, id *models.Identity) (*models.Identity, error)
}

func (f *fakeRepo) enter(ctx context.Context) {
	f.calls.Add(1)
	n := atomic.AddInt32(&f.inFlight, 1)
	f.mu.Lock()
	if n > f.maxSeen {
		f.maxSeen = n
	}
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	atomic.AddInt32(&f.inFlight, -1)
}

func (f *fakeRepo) Find(ctx context.Context, token string) (*models.Identity, error) {
	f.enter(ctx)
	return nil, f.findErr
}

func (f *fakeRepo) Create(ctx context.Context, id *models.Identity) (*models.Identity, error) {
	if f.createFn != nil {
		return f.createFn(ctx, id)
	}
	f.enter(ctx)
	out := *id
	out.ID = 1
	return &out, nil
}

func (f *fakeRepo) Update(ctx context.Context, id *models.Identity) error {
	f.enter(ctx)
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, token string) error {
	f.enter(ctx)
	return nil
}

type closeRecorder struct{ closed atomic.Int32 }

func (c *closeRecorder) Close() error {
	c.closed.Add(1)
	return nil
}

func TestActor_RoundTrip(t *testing.T) {
	a := newSQLiteActor(t, 3)
	ctx := context.Background()

	created, err := a.Create(ctx, &models.Identity{Token: "tok-1", UserID: "alice", IP: "10.0.0.1", UserAgent: "curl"})
	require.NoError(t, err)
	require.Positive(t, created.ID)

	got, err := a.Find(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, "10.0.0.1", got.IP)

	got.Token = "tok-2"
	require.NoError(t, a.Update(ctx, got))

	gone, err := a.Find(ctx, "tok-1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	require.NoError(t, a.Delete(ctx, "tok-2"))
	gone, err = a.Find(ctx, "tok-2")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestActor_ErrorsKeepCause(t *testing.T) {
	a := newSQLiteActor(t, 1)
	ctx := context.Background()

	_, err := a.Create(ctx, &models.Identity{Token: "dup", UserID: "u"})
	require.NoError(t, err)
	_, err = a.Create(ctx, &models.Identity{Token: "dup", UserID: "v"})
	require.ErrorIs(t, err, common.ErrConflict)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, OpCreate, opErr.Op)
	assert.Contains(t, err.Error(), "identity store create")

	err = a.Update(ctx, &models.Identity{ID: 999, Token: "x", UserID: "u"})
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestActor_ConcurrencyBoundedByWorkers(t *testing.T) {
	repo := &fakeRepo{gate: make(chan struct{})}
	a, err := New(repo, nil, Config{Workers: 2})
	require.NoError(t, err)
	defer a.Close()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = a.Find(context.Background(), "t")
		}()
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&repo.inFlight) == 2 }, time.Second, 5*time.Millisecond)
	close(repo.gate)
	wg.Wait()

	assert.Equal(t, int32(6), repo.calls.Load())
	repo.mu.Lock()
	assert.Equal(t, int32(2), repo.maxSeen)
	repo.mu.Unlock()
}

func TestActor_CallerCancelDoesNotAbortWrite(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan error, 1)

	repo := &fakeRepo{}
	repo.createFn = func(ctx context.Context, id *models.Identity) (*models.Identity, error) {
		close(started)
		<-release
		finished <- ctx.Err()
		out := *id
		out.ID = 7
		return &out, nil
	}

	a, err := New(repo, nil, Config{Workers: 1, Timeout: 5 * time.Second})
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := a.Create(ctx, &models.Identity{Token: "t", UserID: "u"})
		errCh <- err
	}()

	<-started
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	assert.NoError(t, <-finished, "store call saw a cancelled context")
}

func TestActor_OperationTimeout(t *testing.T) {
	repo := &fakeRepo{}
	repo.createFn = func(ctx context.Context, id *models.Identity) (*models.Identity, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	a, err := New(repo, nil, Config{Workers: 1, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Create(context.Background(), &models.Identity{Token: "t", UserID: "u"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.ops.WithLabelValues(OpCreate, resultTimeout)))
}

func TestActor_Close(t *testing.T) {
	db := &closeRecorder{}
	a, err := New(&fakeRepo{}, db, Config{Workers: 2})
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, int32(1), db.closed.Load())

	_, err = a.Find(context.Background(), "t")
	require.ErrorIs(t, err, common.ErrActorClosed)
	err = a.Delete(context.Background(), "t")
	require.ErrorIs(t, err, common.ErrActorClosed)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.ops.WithLabelValues(OpFind, resultClosed)))
}

func TestActor_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	repo := &fakeRepo{findErr: errors.New("boom")}

	a, err := New(repo, nil, Config{Workers: 1, Registerer: reg})
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	_, err = a.Find(ctx, "t")
	require.Error(t, err)
	_, err = a.Create(ctx, &models.Identity{Token: "t", UserID: "u"})
	require.NoError(t, err)
	require.NoError(t, a.Delete(ctx, "t"))

	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.ops.WithLabelValues(OpFind, resultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.ops.WithLabelValues(OpCreate, resultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.ops.WithLabelValues(OpDelete, resultOK)))
	assert.Equal(t, 3, testutil.CollectAndCount(a.metrics.duration))

	// a second actor on the same registry shares the collectors
	b, err := New(repo, nil, Config{Workers: 1, Registerer: reg})
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Delete(ctx, "t"))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.metrics.ops.WithLabelValues(OpDelete, resultOK)))
}

func TestNew_RejectsNilRepository(t *testing.T) {
	_, err := New(nil, nil, Config{})
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}
