package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/libcatalog/catalog-test-harness/framework"
	"github.com/libcatalog/catalog-test-harness/framework/helpers"
)

const defaultSettleTimeout = 5 * time.Second

var errNotBootstrapped = errors.New("bootstrap has not completed")

// Bootstrapper performs the one-time priming navigation that sets the tracking cookie marking
// the run as automated traffic. Run navigates at most once per Bootstrapper no matter how many
// times it is called; later calls return the first call's result.
type Bootstrapper struct {
	// URL is the page whose response sets the tracking cookie.
	URL string

	// SettleTimeout bounds how long Run waits for cookies to appear after navigation.
	SettleTimeout time.Duration

	// PollInterval is the interval for the settle wait.
	PollInterval time.Duration

	Logger framework.Logger

	lock    sync.Mutex
	done    bool
	err     error
	cookies []Cookie
}

// Run navigates to the bootstrap URL on the given session and waits for it to settle. A
// navigation fault here is fatal to the whole run, since every later cookie check would be
// meaningless.
func (b *Bootstrapper) Run(ctx context.Context, session *Session) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !b.done {
		b.err = b.bootstrap(ctx, session)
		b.done = true
	}
	return b.err
}

func (b *Bootstrapper) bootstrap(ctx context.Context, session *Session) error {
	logger := b.Logger
	if logger == nil {
		logger = framework.NullLogger()
	}
	settle := b.SettleTimeout
	if settle <= 0 {
		settle = defaultSettleTimeout
	}

	logger.Printf("bootstrapping session at %s", b.URL)
	if err := session.Navigate(ctx, b.URL); err != nil {
		return fmt.Errorf("bootstrap navigation failed: %w", err)
	}

	result, err := helpers.WaitFor(ctx, func(ctx context.Context) ([]Cookie, bool, error) {
		cookies, err := session.Cookies(ctx)
		return cookies, len(cookies) > 0, err
	}, settle, b.PollInterval)
	if err != nil {
		return fmt.Errorf("bootstrap did not settle: %w", err)
	}
	if !result.IsFound() {
		logger.Printf("bootstrap page set no cookies within %s", settle)
	}
	b.cookies = append([]Cookie(nil), result.Value()...)
	session.SealCookies()
	return nil
}

// Cookies returns the cookie state captured at the end of bootstrap.
func (b *Bootstrapper) Cookies() []Cookie {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]Cookie(nil), b.cookies...)
}

// Prime copies the bootstrapped cookie state into another, isolated session and then seals
// that session's cookies. It does not navigate. Run must have succeeded first.
func (b *Bootstrapper) Prime(ctx context.Context, session *Session) error {
	b.lock.Lock()
	done, err, cookies := b.done, b.err, append([]Cookie(nil), b.cookies...)
	b.lock.Unlock()
	switch {
	case !done:
		return errNotBootstrapped
	case err != nil:
		return err
	}
	if len(cookies) > 0 {
		if err := session.SetCookies(ctx, cookies); err != nil {
			return fmt.Errorf("priming session %q: %w", session.Name(), err)
		}
	}
	session.SealCookies()
	return nil
}
