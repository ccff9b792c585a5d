package harness

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/libcatalog/catalog-test-harness/framework"
	"github.com/libcatalog/catalog-test-harness/framework/opt"
)

// RodConfig describes how to obtain a Chrome instance.
type RodConfig struct {
	// RemoteURL is the DevTools websocket URL of an already running browser. If empty, a local
	// Chrome is launched (and downloaded first if necessary).
	RemoteURL string

	// Headful shows the browser window. Only meaningful for a locally launched browser.
	Headful bool

	// Stealth applies the go-rod/stealth evasions to every page so that the catalog's bot
	// protection treats the session like a normal visitor.
	Stealth bool

	Logger framework.Logger
}

// RodBrowser is a connected Chrome instance. Each engine it creates runs in its own incognito
// context, so engines never share cookies.
type RodBrowser struct {
	cfg      RodConfig
	browser  *rod.Browser
	launcher *launcher.Launcher
	closeMu  sync.Mutex
	closed   bool
}

// LaunchRod connects to a remote browser or starts a local one.
func LaunchRod(cfg RodConfig) (*RodBrowser, error) {
	if cfg.Logger == nil {
		cfg.Logger = framework.NullLogger()
	}
	rb := &RodBrowser{cfg: cfg}

	wsURL := cfg.RemoteURL
	if wsURL != "" {
		cfg.Logger.Printf("connecting to remote browser at %s", wsURL)
	} else {
		l := launcher.New().
			Headless(!cfg.Headful).
			NoSandbox(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser launch: %w", err)
		}
		wsURL = u
		rb.launcher = l
		cfg.Logger.Printf("launched local browser at %s", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if rb.launcher != nil {
			rb.launcher.Cleanup()
		}
		return nil, fmt.Errorf("browser connect: %w", err)
	}
	rb.browser = b
	return rb, nil
}

// NewEngine opens a page in a fresh incognito context. It has the signature of an
// EngineFactory.
func (rb *RodBrowser) NewEngine(ctx context.Context) (Engine, error) {
	incognito, err := rb.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, framework.InfrastructureFault{Op: "create browser context", Err: err}
	}
	var page *rod.Page
	if rb.cfg.Stealth {
		page, err = stealth.Page(incognito)
	} else {
		page, err = incognito.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = incognito.Close()
		return nil, framework.InfrastructureFault{Op: "create page", Err: err}
	}
	return &rodEngine{context: incognito, page: page}, nil
}

// Close shuts down the browser, and kills the local Chrome process if LaunchRod started one.
func (rb *RodBrowser) Close() error {
	rb.closeMu.Lock()
	defer rb.closeMu.Unlock()
	if rb.closed {
		return nil
	}
	rb.closed = true
	err := rb.browser.Close()
	if rb.launcher != nil {
		rb.launcher.Cleanup()
	}
	return err
}

type rodEngine struct {
	context *rod.Browser
	page    *rod.Page
}

type rodElement struct {
	el       *rod.Element
	selector Selector
	index    int
}

func (e rodElement) Describe() string {
	return fmt.Sprintf("%s[%d]", e.selector, e.index)
}

func (r *rodEngine) Navigate(ctx context.Context, url string) error {
	page := r.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return rodNavigationFault(url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return rodNavigationFault(url, err)
	}
	return nil
}

func (r *rodEngine) Query(ctx context.Context, selector Selector) ([]Element, error) {
	page := r.page.Context(ctx)
	var (
		els rod.Elements
		err error
	)
	switch selector.Strategy {
	case StrategyCSS:
		els, err = page.Elements(selector.Value)
	case StrategyXPath:
		els, err = page.ElementsX(selector.Value)
	case StrategyID:
		els, err = page.Elements(idSelector(selector.Value))
	default:
		return nil, framework.SelectorFault{Selector: selector.String(), Err: errUnknownStrategy}
	}
	if err != nil {
		return nil, rodQueryFault(selector, err)
	}
	ret := make([]Element, 0, len(els))
	for i, el := range els {
		ret = append(ret, rodElement{el: el, selector: selector, index: i})
	}
	return ret, nil
}

func (r *rodEngine) Text(ctx context.Context, el Element) (string, error) {
	re, err := asRodElement(el)
	if err != nil {
		return "", err
	}
	text, err := re.el.Context(ctx).Text()
	if err != nil {
		return "", rodFault("get text", err)
	}
	return text, nil
}

func (r *rodEngine) Attribute(ctx context.Context, el Element, name string) (opt.Maybe[string], error) {
	re, err := asRodElement(el)
	if err != nil {
		return opt.None[string](), err
	}
	value, err := re.el.Context(ctx).Attribute(name)
	if err != nil {
		return opt.None[string](), rodFault("get attribute", err)
	}
	return opt.FromPtr(value), nil
}

func (r *rodEngine) Click(ctx context.Context, el Element) error {
	re, err := asRodElement(el)
	if err != nil {
		return err
	}
	if err := re.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return rodFault("click", err)
	}
	if err := r.page.Context(ctx).WaitLoad(); err != nil {
		return rodFault("wait for load after click", err)
	}
	return nil
}

func (r *rodEngine) Fill(ctx context.Context, el Element, value string) error {
	re, err := asRodElement(el)
	if err != nil {
		return err
	}
	input := re.el.Context(ctx)
	if err := input.SelectAllText(); err != nil {
		return rodFault("select input text", err)
	}
	if err := input.Input(value); err != nil {
		return rodFault("input text", err)
	}
	return nil
}

func (r *rodEngine) Title(ctx context.Context) (string, error) {
	info, err := r.page.Context(ctx).Info()
	if err != nil {
		return "", rodFault("get title", err)
	}
	return info.Title, nil
}

func (r *rodEngine) Cookies(ctx context.Context) ([]Cookie, error) {
	cookies, err := r.page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, rodFault("get cookies", err)
	}
	ret := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		ret = append(ret, Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path})
	}
	return ret, nil
}

func (r *rodEngine) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
			URL:    c.URL,
		})
	}
	if err := r.page.Context(ctx).SetCookies(params); err != nil {
		return rodFault("set cookies", err)
	}
	return nil
}

func (r *rodEngine) Close() error {
	err := r.page.Close()
	if cerr := r.context.Close(); err == nil {
		err = cerr
	}
	return err
}

var (
	errUnknownStrategy = errors.New("unknown selector strategy")
	errForeignElement  = errors.New("element was not returned by this engine")
)

func asRodElement(el Element) (rodElement, error) {
	re, ok := el.(rodElement)
	if !ok {
		return rodElement{}, framework.InfrastructureFault{Op: "use element", Err: errForeignElement}
	}
	return re, nil
}

func idSelector(id string) string {
	return "[id=" + strconv.Quote(id) + "]"
}

func rodNavigationFault(url string, err error) error {
	if isContextError(err) {
		return framework.InfrastructureFault{Op: "navigate to " + url, Err: err}
	}
	return framework.NavigationFault{URL: url, Err: err}
}

func rodQueryFault(selector Selector, err error) error {
	var evalErr *rod.EvalError
	if errors.As(err, &evalErr) {
		return framework.SelectorFault{Selector: selector.String(), Err: err}
	}
	return rodFault("query "+selector.String(), err)
}

func rodFault(op string, err error) error {
	return framework.InfrastructureFault{Op: op, Err: err}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
