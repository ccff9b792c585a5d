package harness

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/libcatalog/catalog-test-harness/framework"
	"github.com/libcatalog/catalog-test-harness/framework/opt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// overlapEngine records whether two operations were ever in flight at once.
type overlapEngine struct {
	inFlight   int32
	overlapped int32
	calls      int32
	closed     int32
}

func (e *overlapEngine) enter() func() {
	atomic.AddInt32(&e.calls, 1)
	if atomic.AddInt32(&e.inFlight, 1) > 1 {
		atomic.StoreInt32(&e.overlapped, 1)
	}
	time.Sleep(time.Millisecond)
	return func() { atomic.AddInt32(&e.inFlight, -1) }
}

func (e *overlapEngine) Navigate(context.Context, string) error { defer e.enter()(); return nil }
func (e *overlapEngine) Query(context.Context, Selector) ([]Element, error) {
	defer e.enter()()
	return nil, nil
}
func (e *overlapEngine) Text(context.Context, Element) (string, error) { defer e.enter()(); return "", nil }
func (e *overlapEngine) Attribute(context.Context, Element, string) (opt.Maybe[string], error) {
	defer e.enter()()
	return opt.None[string](), nil
}
func (e *overlapEngine) Click(context.Context, Element) error        { defer e.enter()(); return nil }
func (e *overlapEngine) Fill(context.Context, Element, string) error { defer e.enter()(); return nil }
func (e *overlapEngine) Title(context.Context) (string, error)       { defer e.enter()(); return "", nil }
func (e *overlapEngine) Cookies(context.Context) ([]Cookie, error)   { defer e.enter()(); return nil, nil }
func (e *overlapEngine) SetCookies(context.Context, []Cookie) error  { defer e.enter()(); return nil }
func (e *overlapEngine) Close() error                                { atomic.AddInt32(&e.closed, 1); return nil }

func TestSessionSerializesOperations(t *testing.T) {
	engine := &overlapEngine{}
	session := NewSession("test", engine, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = session.Navigate(ctx, "http://catalog.example/")
			_, _ = session.Query(ctx, CSS("h3"))
			_, _ = session.Title(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(30), atomic.LoadInt32(&engine.calls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&engine.overlapped))
}

func TestSessionTracksCurrentURL(t *testing.T) {
	session := NewSession("test", &overlapEngine{}, nil)
	assert.Equal(t, "", session.CurrentURL())
	require.NoError(t, session.Navigate(context.Background(), "http://catalog.example/Record/1"))
	assert.Equal(t, "http://catalog.example/Record/1", session.CurrentURL())
}

func TestSessionSealedCookies(t *testing.T) {
	session := NewSession("test", &overlapEngine{}, nil)
	ctx := context.Background()
	require.NoError(t, session.SetCookies(ctx, []Cookie{{Name: "a", Value: "b"}}))

	session.SealCookies()
	err := session.SetCookies(ctx, []Cookie{{Name: "a", Value: "c"}})
	assert.ErrorIs(t, err, ErrCookiesSealed)
}

func TestSessionClose(t *testing.T) {
	engine := &overlapEngine{}
	session := NewSession("test", engine, nil)
	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	assert.Equal(t, int32(1), atomic.LoadInt32(&engine.closed))

	_, err := session.Title(context.Background())
	var fault framework.InfrastructureFault
	assert.True(t, errors.As(err, &fault))
}

func TestSessionCookieAndBodyText(t *testing.T) {
	server := newStaticTestServer(t)
	engine := newTestStaticEngine(t)
	session := NewSession("test", engine, nil)
	ctx := context.Background()

	body, err := session.BodyText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", body)

	require.NoError(t, session.Navigate(ctx, server.URL+"/second"))
	body, err = session.BodyText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second page", body)

	require.NoError(t, session.Navigate(ctx, server.URL+"/"))
	value, err := session.Cookie(ctx, "catalog-tracking")
	require.NoError(t, err)
	assert.Equal(t, opt.Some("automated"), value)

	missing, err := session.Cookie(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, missing.IsDefined())
}

func TestBootstrapperNavigatesOnce(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.SetCookie(w, &http.Cookie{Name: "catalog-tracking", Value: "automated", Path: "/"})
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	session := NewSession("primary", newTestStaticEngine(t), nil)
	b := &Bootstrapper{URL: server.URL + "/", SettleTimeout: time.Second, PollInterval: time.Millisecond}
	ctx := context.Background()

	require.NoError(t, b.Run(ctx, session))
	require.NoError(t, b.Run(ctx, session))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	cookies := b.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "automated", cookies[0].Value)

	assert.ErrorIs(t, session.SetCookies(ctx, cookies), ErrCookiesSealed)

	t.Run("prime copies cookies into an isolated session", func(t *testing.T) {
		other := NewSession("secondary", newTestStaticEngine(t), nil)
		require.NoError(t, b.Prime(ctx, other))
		require.NoError(t, other.Navigate(ctx, server.URL+"/"))
		value, err := other.Cookie(ctx, "catalog-tracking")
		require.NoError(t, err)
		assert.Equal(t, "automated", value.Value())
		assert.ErrorIs(t, other.SetCookies(ctx, cookies), ErrCookiesSealed)
	})
}

func TestBootstrapperNavigationFaultIsReturned(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	b := &Bootstrapper{URL: server.URL + "/", SettleTimeout: time.Millisecond}
	err := b.Run(context.Background(), NewSession("primary", newTestStaticEngine(t), nil))
	var fault framework.NavigationFault
	require.True(t, errors.As(err, &fault))
	assert.Contains(t, err.Error(), "bootstrap navigation failed")
}

func TestBootstrapperWithoutCookiesStillSucceeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	logger := &framework.CapturingLogger{}
	b := &Bootstrapper{URL: server.URL, SettleTimeout: 10 * time.Millisecond, PollInterval: time.Millisecond,
		Logger: logger}
	require.NoError(t, b.Run(context.Background(), NewSession("primary", newTestStaticEngine(t), nil)))
	assert.Len(t, b.Cookies(), 0)
	assert.Contains(t, logger.Output().ToString(""), "set no cookies")
}

func TestPrimeBeforeRunFailsWithoutPreventingRun(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.SetCookie(w, &http.Cookie{Name: "catalog-tracking", Value: "automated", Path: "/"})
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	b := &Bootstrapper{URL: server.URL + "/", SettleTimeout: time.Second, PollInterval: time.Millisecond}
	ctx := context.Background()
	assert.ErrorIs(t, b.Prime(ctx, NewSession("secondary", newTestStaticEngine(t), nil)), errNotBootstrapped)

	require.NoError(t, b.Run(ctx, NewSession("primary", newTestStaticEngine(t), nil)))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Len(t, b.Cookies(), 1)
	assert.NoError(t, b.Prime(ctx, NewSession("secondary", newTestStaticEngine(t), nil)))
}
