// Package harness connects the scenario framework to a browser automation engine. It contains
// no catalog-specific test logic, only the session and engine mechanisms that test suites build
// on.
//
// An Engine is the external automation collaborator (a real Chrome driven through go-rod, or a
// lightweight HTTP engine that does not execute scripts). A Session wraps one Engine and
// guarantees that only one operation is in flight against it at a time. A Bootstrapper primes
// the first session once per process.
package harness

import (
	"context"
	"fmt"

	"github.com/libcatalog/catalog-test-harness/framework/opt"
)

// Strategy says how an engine should evaluate a Selector's value.
type Strategy string

const (
	StrategyCSS   Strategy = "css"
	StrategyXPath Strategy = "xpath"
	StrategyID    Strategy = "id"
)

// Selector is an opaque query forwarded to the engine. The harness never parses the value;
// engines only switch on the strategy.
type Selector struct {
	Strategy Strategy
	Value    string
}

// CSS returns a CSS selector.
func CSS(value string) Selector { return Selector{Strategy: StrategyCSS, Value: value} }

// XPath returns an XPath expression selector.
func XPath(value string) Selector { return Selector{Strategy: StrategyXPath, Value: value} }

// ID returns a selector matching the element with the given id attribute.
func ID(value string) Selector { return Selector{Strategy: StrategyID, Value: value} }

func (s Selector) String() string {
	return fmt.Sprintf("%s:%s", s.Strategy, s.Value)
}

// Element is a handle to an element returned by Engine.Query. Handles are only valid until the
// next navigation.
type Element interface {
	Describe() string
}

// Cookie is a browser cookie. URL is set when the engine cannot report the cookie's domain and
// identifies the page the cookie was read from.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
	URL    string
}

// Engine is the browser automation collaborator.
//
// Implementations must return typed faults from the framework package: a NavigationFault when
// a page cannot be loaded, a SelectorFault when a query is malformed, and an
// InfrastructureFault for anything else that goes wrong in the engine. A query that simply
// matches nothing is not an error.
type Engine interface {
	Navigate(ctx context.Context, url string) error
	Query(ctx context.Context, selector Selector) ([]Element, error)
	Text(ctx context.Context, el Element) (string, error)
	Attribute(ctx context.Context, el Element, name string) (opt.Maybe[string], error)
	Click(ctx context.Context, el Element) error
	Fill(ctx context.Context, el Element, value string) error
	Title(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	Close() error
}

// EngineFactory creates an Engine with its own isolated cookie jar.
type EngineFactory func(ctx context.Context) (Engine, error)
