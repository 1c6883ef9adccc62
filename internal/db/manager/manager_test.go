package manager_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vvka-141/sfdash/internal/db"
	"github.com/vvka-141/sfdash/internal/db/manager"
	"github.com/vvka-141/sfdash/internal/logging"
	"github.com/vvka-141/sfdash/pkg/sfdash"
)

func TestMain(m *testing.M) {
	// gosnowflake's keyring dependency starts a D-Bus worker at init when a
	// session bus is reachable; it lives for the whole process.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/godbus/dbus.(*Conn).inWorker"))
}

// fakeConn is a test double for sfdash.Conn.
type fakeConn struct {
	closed   atomic.Bool
	closeErr error
	query    func(ctx context.Context, sql string) ([]sfdash.Record, error)
}

func (c *fakeConn) Query(ctx context.Context, sql string) ([]sfdash.Record, error) {
	if c.query != nil {
		return c.query(ctx, sql)
	}
	return []sfdash.Record{{"1": int64(1)}}, nil
}

func (c *fakeConn) Ping(ctx context.Context) error { return nil }

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return c.closeErr
}

// fakeFactory counts constructions and can hold them open on a gate.
type fakeFactory struct {
	mu       sync.Mutex
	calls    int
	creds    []sfdash.Credential
	conns    []*fakeConn
	gate     chan struct{}
	started  chan struct{}
	err      error
	closeErr error
}

type fakeConnector struct {
	f    *fakeFactory
	cred sfdash.Credential
}

func (c fakeConnector) Connect(ctx context.Context) (sfdash.Conn, error) {
	return c.f.connect(c.cred)
}

func (f *fakeFactory) New(cred sfdash.Credential) (sfdash.Connector, error) {
	return fakeConnector{f: f, cred: cred}, nil
}

func (f *fakeFactory) connect(cred sfdash.Credential) (sfdash.Conn, error) {
	f.mu.Lock()
	f.calls++
	f.creds = append(f.creds, cred)
	gate, started, err := f.gate, f.started, f.err
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	conn := &fakeConn{closeErr: f.closeErr}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	return conn, nil
}

func (f *fakeFactory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFactory) Conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[i]
}

func (f *fakeFactory) hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.started = make(chan struct{}, 64)
}

// recordingLogger keeps Error lines for assertions.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Verbose(format string, args ...interface{}) {}
func (l *recordingLogger) Info(format string, args ...interface{})    {}
func (l *recordingLogger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

type testEnv struct {
	tokenPath string
	factory   *fakeFactory
	mgr       *manager.Manager
}

func newTestEnv(t *testing.T, logger sfdash.Logger) *testEnv {
	t.Helper()
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	path := filepath.Join(t.TempDir(), "token")
	cfg := &sfdash.ConnectionConfig{
		Account:   "acme-analytics",
		User:      "jane@example.com",
		Host:      "xy12345.eu-west-1.snowflakecomputing.com",
		TokenPath: path,
	}
	resolver := db.NewCredentialResolverWithProvider(cfg, nil, logger)
	f := &fakeFactory{}
	mgr := manager.New(resolver, f.New, logger)
	t.Cleanup(func() { _ = mgr.Close() })
	return &testEnv{tokenPath: path, factory: f, mgr: mgr}
}

func (e *testEnv) writeToken(t *testing.T, token string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.tokenPath, []byte(token), 0o600))
}

func (e *testEnv) removeToken(t *testing.T) {
	t.Helper()
	require.NoError(t, os.Remove(e.tokenPath))
}

func TestAcquire_LazyAndIdempotent(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()

	assert.Equal(t, 0, e.factory.Calls(), "no connection before first acquire")
	assert.Equal(t, sfdash.HandleUninitialized, e.mgr.Stats().State)

	h1, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)
	h2, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Equal(t, 1, e.factory.Calls())
	assert.Equal(t, sfdash.HandleReady, h1.State())
	assert.Equal(t, sfdash.AuthModeInteractive, h1.Mode())
	assert.NotEmpty(t, h1.ID())
}

func TestAcquire_ModeSelectionFollowsTokenFile(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()

	interactive, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, sfdash.AuthModeInteractive, interactive.Mode())

	e.writeToken(t, "T1")
	delegated, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, sfdash.AuthModeDelegatedToken, delegated.Mode())
	assert.Equal(t, "T1", delegated.Credential().(sfdash.DelegatedTokenCredential).Token)
	assert.Equal(t, "xy12345", delegated.Credential().(sfdash.DelegatedTokenCredential).Account)
	assert.Equal(t, sfdash.HandleStale, interactive.State())
	assert.True(t, e.factory.Conn(0).closed.Load(), "interactive handle released")

	e.removeToken(t)
	back, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, sfdash.AuthModeInteractive, back.Mode())
	assert.Equal(t, 3, e.factory.Calls())
}

func TestAcquire_ConcurrentCallersShareOneConstruction(t *testing.T) {
	e := newTestEnv(t, nil)
	e.factory.hold()

	const callers = 32
	handles := make([]*manager.Handle, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := e.mgr.Acquire(context.Background())
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}

	<-e.factory.started
	assert.Equal(t, sfdash.HandleConnecting, e.mgr.Stats().State)
	close(e.factory.gate)
	wg.Wait()

	assert.Equal(t, 1, e.factory.Calls())
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
}

func TestAcquire_TokenRotation(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()

	e.writeToken(t, "T1")
	h1, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)

	same, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, h1, same, "unchanged token reuses the handle")

	e.writeToken(t, "T2")
	h2, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)

	assert.NotSame(t, h1, h2)
	assert.Equal(t, "T2", h2.Credential().(sfdash.DelegatedTokenCredential).Token)
	assert.Equal(t, sfdash.HandleStale, h1.State())
	assert.True(t, e.factory.Conn(0).closed.Load())
	assert.Equal(t, 2, e.factory.Calls())

	_, err = h1.Query(ctx, "SELECT 1")
	require.ErrorIs(t, err, sfdash.ErrStaleHandle)
}

func TestAcquire_ReleaseFailureIsLoggedNotReturned(t *testing.T) {
	logger := &recordingLogger{}
	e := newTestEnv(t, logger)
	e.factory.closeErr = errors.New("close failed")
	ctx := context.Background()

	e.writeToken(t, "T1")
	_, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)

	e.writeToken(t, "T2")
	_, err = e.mgr.Acquire(ctx)
	require.NoError(t, err)

	errs := logger.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "close failed")
}

func TestAcquire_ConstructionFailureCachesNothing(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()
	loginErr := errors.New("SAML response is invalid")
	e.factory.err = loginErr

	_, err := e.mgr.Acquire(ctx)
	require.ErrorIs(t, err, sfdash.ErrConnectionFailed)
	require.ErrorIs(t, err, loginErr)

	stats := e.mgr.Stats()
	assert.Equal(t, sfdash.HandleUninitialized, stats.State)
	assert.Equal(t, int64(1), stats.Failures)
	assert.Zero(t, stats.Constructions)

	e.factory.err = nil
	h, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, sfdash.HandleReady, h.State())
	assert.Equal(t, 2, e.factory.Calls())
}

func TestAcquire_ResolveFailure(t *testing.T) {
	e := newTestEnv(t, nil)
	e.writeToken(t, "   ")

	_, err := e.mgr.Acquire(context.Background())
	require.ErrorIs(t, err, sfdash.ErrInvalidConfig)
	assert.Zero(t, e.factory.Calls())
}

func TestAcquire_WaiterCancellationDoesNotAbortConstruction(t *testing.T) {
	e := newTestEnv(t, nil)
	e.factory.hold()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := e.mgr.Acquire(ctx)
		errCh <- err
	}()

	<-e.factory.started
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, sfdash.HandleConnecting, e.mgr.Stats().State)

	close(e.factory.gate)
	h, err := e.mgr.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sfdash.HandleReady, h.State())
	assert.Equal(t, 1, e.factory.Calls())
}

func TestInvalidate(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()

	e.mgr.Invalidate() // nothing cached

	h1, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)

	e.mgr.Invalidate()
	assert.Equal(t, sfdash.HandleStale, h1.State())
	assert.True(t, e.factory.Conn(0).closed.Load())

	stats := e.mgr.Stats()
	assert.Equal(t, sfdash.HandleUninitialized, stats.State)
	assert.Equal(t, int64(1), stats.Invalidations)

	_, err = h1.Query(ctx, "SELECT 1")
	require.ErrorIs(t, err, sfdash.ErrStaleHandle)

	h2, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)
	assert.NotSame(t, h1, h2)
	assert.Equal(t, 2, e.factory.Calls())
}

func TestInvalidateHandle_IgnoresReplacedHandle(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()

	h1, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, e.mgr.InvalidateHandle(h1))

	h2, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)

	assert.False(t, e.mgr.InvalidateHandle(h1), "old handle must not discard the new one")
	assert.False(t, e.mgr.InvalidateHandle(nil))
	assert.Equal(t, sfdash.HandleReady, h2.State())
}

func TestHandleQuery_FailureDuringInvalidationIsStale(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()

	h, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)

	e.factory.Conn(0).query = func(ctx context.Context, sql string) ([]sfdash.Record, error) {
		e.mgr.Invalidate()
		return nil, errors.New("sql: database is closed")
	}

	_, err = h.Query(ctx, "SELECT 1")
	require.ErrorIs(t, err, sfdash.ErrStaleHandle)
	assert.Contains(t, err.Error(), "database is closed")
}

func TestHandleQuery_PlainFailurePassesThrough(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()

	h, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)

	syntaxErr := errors.New("SQL compilation error: syntax error line 1")
	e.factory.Conn(0).query = func(ctx context.Context, sql string) ([]sfdash.Record, error) {
		return nil, syntaxErr
	}

	_, err = h.Query(ctx, "SELEC 1")
	require.ErrorIs(t, err, syntaxErr)
	assert.NotErrorIs(t, err, sfdash.ErrStaleHandle)
	assert.Equal(t, sfdash.HandleReady, h.State())
}

func TestClose(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()

	h, err := e.mgr.Acquire(ctx)
	require.NoError(t, err)

	require.NoError(t, e.mgr.Close())
	assert.Equal(t, sfdash.HandleClosed, h.State())
	assert.True(t, e.factory.Conn(0).closed.Load())
	assert.Equal(t, sfdash.HandleClosed, e.mgr.Stats().State)

	_, err = e.mgr.Acquire(ctx)
	require.ErrorIs(t, err, sfdash.ErrManagerClosed)

	require.NoError(t, e.mgr.Close(), "Close is idempotent")
}

func TestClose_DuringConstruction(t *testing.T) {
	e := newTestEnv(t, nil)
	e.factory.hold()

	errCh := make(chan error, 1)
	go func() {
		_, err := e.mgr.Acquire(context.Background())
		errCh <- err
	}()

	<-e.factory.started
	require.NoError(t, e.mgr.Close())
	close(e.factory.gate)

	require.ErrorIs(t, <-errCh, sfdash.ErrManagerClosed)
	assert.True(t, e.factory.Conn(0).closed.Load(), "late handle released")
}

func TestClose_ReturnsReleaseError(t *testing.T) {
	e := newTestEnv(t, nil)
	e.factory.closeErr = errors.New("close failed")

	_, err := e.mgr.Acquire(context.Background())
	require.NoError(t, err)

	err = e.mgr.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close failed")
}

func TestStats(t *testing.T) {
	e := newTestEnv(t, nil)

	h, err := e.mgr.Acquire(context.Background())
	require.NoError(t, err)

	stats := e.mgr.Stats()
	assert.Equal(t, sfdash.HandleReady, stats.State)
	assert.Equal(t, "READY", stats.StateName)
	assert.Equal(t, "Interactive", stats.Mode)
	assert.Equal(t, h.ID(), stats.HandleID)
	assert.Equal(t, int64(1), stats.Constructions)
}

func TestWatchTokenFile_InvalidatesOnRotation(t *testing.T) {
	e := newTestEnv(t, nil)
	e.writeToken(t, "T1")

	h1, err := e.mgr.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done, err := e.mgr.WatchTokenFile(ctx, e.tokenPath)
	require.NoError(t, err)

	e.writeToken(t, "T2")
	require.Eventually(t, func() bool {
		return h1.State() == sfdash.HandleStale
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, sfdash.HandleUninitialized, e.mgr.Stats().State)

	cancel()
	<-done

	h2, err := e.mgr.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T2", h2.Credential().(sfdash.DelegatedTokenCredential).Token)
}

func TestWatchTokenFile_MissingDirectory(t *testing.T) {
	e := newTestEnv(t, nil)

	_, err := e.mgr.WatchTokenFile(context.Background(), filepath.Join(t.TempDir(), "missing", "token"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to watch token directory"))
}
