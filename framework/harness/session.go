package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/libcatalog/catalog-test-harness/framework"
	"github.com/libcatalog/catalog-test-harness/framework/opt"
)

// ErrCookiesSealed is returned by SetCookies once the session's tracking cookies have been
// established.
var ErrCookiesSealed = errors.New("session cookies are read-only after bootstrap")

var errSessionClosed = errors.New("session is closed")

// Session is the single browser session used by one environment. All operations are
// serialized: a second operation never begins before the previous one has returned.
//
// A Session is passed by reference through a scenario traversal and is never copied.
type Session struct {
	name    string
	engine  Engine
	logger  framework.Logger
	current string
	sealed  bool
	closed  bool
	lock    sync.Mutex
}

// NewSession wraps an engine. The name only appears in log output.
func NewSession(name string, engine Engine, logger framework.Logger) *Session {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Session{name: name, engine: engine, logger: logger}
}

// Name returns the name given to NewSession.
func (s *Session) Name() string { return s.name }

// CurrentURL returns the URL of the last successful navigation.
func (s *Session) CurrentURL() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.current
}

func (s *Session) do(op string, fn func() error) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return framework.InfrastructureFault{Op: op, Err: errSessionClosed}
	}
	return fn()
}

// Navigate loads a page and waits for it to finish loading.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.do("navigate", func() error {
		s.logger.Printf("[%s] navigating to %s", s.name, url)
		if err := s.engine.Navigate(ctx, url); err != nil {
			return err
		}
		s.current = url
		return nil
	})
}

// Query returns all elements currently matching the selector, which may be none.
func (s *Session) Query(ctx context.Context, selector Selector) ([]Element, error) {
	var ret []Element
	err := s.do("query", func() error {
		els, err := s.engine.Query(ctx, selector)
		ret = els
		return err
	})
	return ret, err
}

// Text returns the rendered text of an element.
func (s *Session) Text(ctx context.Context, el Element) (string, error) {
	var ret string
	err := s.do("get text", func() error {
		text, err := s.engine.Text(ctx, el)
		ret = text
		return err
	})
	return ret, err
}

// Attribute returns an attribute of an element, if present.
func (s *Session) Attribute(ctx context.Context, el Element, name string) (opt.Maybe[string], error) {
	var ret opt.Maybe[string]
	err := s.do("get attribute", func() error {
		value, err := s.engine.Attribute(ctx, el, name)
		ret = value
		return err
	})
	return ret, err
}

// Click clicks an element, which may cause a navigation.
func (s *Session) Click(ctx context.Context, el Element) error {
	return s.do("click", func() error {
		s.logger.Printf("[%s] clicking %s", s.name, el.Describe())
		return s.engine.Click(ctx, el)
	})
}

// Fill replaces the value of an input element.
func (s *Session) Fill(ctx context.Context, el Element, value string) error {
	return s.do("fill", func() error {
		return s.engine.Fill(ctx, el, value)
	})
}

// Title returns the current page title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var ret string
	err := s.do("get title", func() error {
		title, err := s.engine.Title(ctx)
		ret = title
		return err
	})
	return ret, err
}

// BodyText returns the full rendered text of the page body, or an empty string if the page
// has no body element.
func (s *Session) BodyText(ctx context.Context) (string, error) {
	var ret string
	err := s.do("get body text", func() error {
		els, err := s.engine.Query(ctx, CSS("body"))
		if err != nil || len(els) == 0 {
			return err
		}
		text, err := s.engine.Text(ctx, els[0])
		ret = text
		return err
	})
	return ret, err
}

// Cookie returns the value of the named cookie as visible to the current page.
func (s *Session) Cookie(ctx context.Context, name string) (opt.Maybe[string], error) {
	cookies, err := s.Cookies(ctx)
	if err != nil {
		return opt.None[string](), err
	}
	for _, c := range cookies {
		if c.Name == name {
			return opt.Some(c.Value), nil
		}
	}
	return opt.None[string](), nil
}

// Cookies returns all cookies visible to the current page.
func (s *Session) Cookies(ctx context.Context) ([]Cookie, error) {
	var ret []Cookie
	err := s.do("get cookies", func() error {
		cookies, err := s.engine.Cookies(ctx)
		ret = cookies
		return err
	})
	return ret, err
}

// SetCookies seeds cookies into the session. It fails with ErrCookiesSealed once the session
// has been sealed.
func (s *Session) SetCookies(ctx context.Context, cookies []Cookie) error {
	return s.do("set cookies", func() error {
		if s.sealed {
			return ErrCookiesSealed
		}
		return s.engine.SetCookies(ctx, cookies)
	})
}

// SealCookies makes the session's cookie state read-only for the rest of its life.
func (s *Session) SealCookies() {
	s.lock.Lock()
	s.sealed = true
	s.lock.Unlock()
}

// Close releases the engine. It is safe to call more than once.
func (s *Session) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.engine.Close(); err != nil {
		return fmt.Errorf("closing session %q: %w", s.name, err)
	}
	return nil
}
