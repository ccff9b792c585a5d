package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"

	"github.com/libcatalog/catalog-test-harness/framework"
	"github.com/libcatalog/catalog-test-harness/framework/opt"
)

// DefaultUserAgent is sent by the static engine unless StaticConfig overrides it.
const DefaultUserAgent = "catalog-test-harness (static engine)"

// StaticConfig configures the HTTP engine.
type StaticConfig struct {
	// Transport is used for all requests; nil means http.DefaultTransport.
	Transport http.RoundTripper

	// RequestTimeout bounds each individual request. Zero means no limit beyond the context.
	RequestTimeout time.Duration

	UserAgent string
}

// StaticEngineFactory returns an EngineFactory producing engines that fetch pages over plain
// HTTP and evaluate CSS selectors against the parsed markup. They do not run scripts, so they
// only see what the server renders, but they need no browser.
func StaticEngineFactory(cfg StaticConfig) EngineFactory {
	return func(context.Context) (Engine, error) {
		return NewStaticEngine(cfg)
	}
}

// StaticEngine is an Engine backed by net/http and goquery. XPath selectors are not supported
// and are reported as a SelectorFault.
type StaticEngine struct {
	cfg        StaticConfig
	client     *http.Client
	jar        *cookiejar.Jar
	doc        *goquery.Document
	current    *url.URL
	generation int
}

// NewStaticEngine creates an engine with an empty cookie jar.
func NewStaticEngine(cfg StaticConfig) (*StaticEngine, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, framework.InfrastructureFault{Op: "create cookie jar", Err: err}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &StaticEngine{
		cfg:    cfg,
		jar:    jar,
		client: &http.Client{Transport: cfg.Transport, Jar: jar, Timeout: cfg.RequestTimeout},
	}, nil
}

type staticElement struct {
	node       *html.Node
	selector   Selector
	index      int
	generation int
}

func (e staticElement) Describe() string {
	return fmt.Sprintf("%s[%d]", e.selector, e.index)
}

var (
	errXPathUnsupported = errors.New("XPath is not supported by the static engine")
	errStaleElement     = errors.New("element belongs to a page that is no longer loaded")
	errNoPage           = errors.New("no page has been loaded")
)

func (s *StaticEngine) Navigate(ctx context.Context, rawURL string) error {
	return s.load(ctx, http.MethodGet, rawURL, nil)
}

func (s *StaticEngine) load(ctx context.Context, method, rawURL string, form url.Values) error {
	var body io.Reader
	if form != nil && method == http.MethodPost {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return framework.NavigationFault{URL: rawURL, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return framework.InfrastructureFault{Op: "navigate to " + rawURL, Err: ctx.Err()}
		}
		return framework.NavigationFault{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return framework.NavigationFault{URL: rawURL, Err: fmt.Errorf("HTTP status %d", resp.StatusCode)}
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return framework.NavigationFault{URL: rawURL, Err: err}
	}
	s.doc = doc
	s.current = resp.Request.URL
	s.generation++
	return nil
}

func (s *StaticEngine) Query(_ context.Context, selector Selector) ([]Element, error) {
	var matcher cascadia.Selector
	switch selector.Strategy {
	case StrategyCSS, StrategyID:
		css := selector.Value
		if selector.Strategy == StrategyID {
			css = idSelector(selector.Value)
		}
		compiled, err := cascadia.Compile(css)
		if err != nil {
			return nil, framework.SelectorFault{Selector: selector.String(), Err: err}
		}
		matcher = compiled
	case StrategyXPath:
		return nil, framework.SelectorFault{Selector: selector.String(), Err: errXPathUnsupported}
	default:
		return nil, framework.SelectorFault{Selector: selector.String(), Err: errUnknownStrategy}
	}
	if s.doc == nil {
		return nil, nil
	}
	nodes := s.doc.FindMatcher(matcher).Nodes
	ret := make([]Element, 0, len(nodes))
	for i, n := range nodes {
		ret = append(ret, staticElement{node: n, selector: selector, index: i, generation: s.generation})
	}
	return ret, nil
}

func (s *StaticEngine) element(op string, el Element) (*goquery.Selection, *html.Node, error) {
	se, ok := el.(staticElement)
	if !ok {
		return nil, nil, framework.InfrastructureFault{Op: op, Err: errForeignElement}
	}
	if s.doc == nil || se.generation != s.generation {
		return nil, nil, framework.InfrastructureFault{Op: op, Err: errStaleElement}
	}
	return s.doc.FindNodes(se.node), se.node, nil
}

// Text approximates a browser's innerText: script and style content is left out, and block
// elements start a new line.
func (s *StaticEngine) Text(_ context.Context, el Element) (string, error) {
	_, node, err := s.element("get text", el)
	if err != nil {
		return "", err
	}
	return renderedText(node), nil
}

func (s *StaticEngine) Attribute(_ context.Context, el Element, name string) (opt.Maybe[string], error) {
	sel, _, err := s.element("get attribute", el)
	if err != nil {
		return opt.None[string](), err
	}
	if value, ok := sel.Attr(name); ok {
		return opt.Some(value), nil
	}
	return opt.None[string](), nil
}

// Click follows links and submits forms. Clicking anything else has no effect, since the
// engine does not run scripts.
func (s *StaticEngine) Click(ctx context.Context, el Element) error {
	sel, node, err := s.element("click", el)
	if err != nil {
		return err
	}
	switch {
	case node.Data == "a":
		href, ok := sel.Attr("href")
		if !ok {
			return nil
		}
		target, err := s.current.Parse(href)
		if err != nil {
			return framework.NavigationFault{URL: href, Err: err}
		}
		return s.load(ctx, http.MethodGet, target.String(), nil)
	case isSubmitControl(node):
		form := enclosingForm(node)
		if form == nil {
			return nil
		}
		return s.submit(ctx, form, node)
	}
	return nil
}

func (s *StaticEngine) submit(ctx context.Context, form, submitter *html.Node) error {
	formSel := s.doc.FindNodes(form)
	method := strings.ToUpper(formSel.AttrOr("method", http.MethodGet))
	action, err := s.current.Parse(formSel.AttrOr("action", ""))
	if err != nil {
		return framework.NavigationFault{URL: formSel.AttrOr("action", ""), Err: err}
	}

	values := url.Values{}
	formSel.Find("input, textarea, select").Each(func(_ int, field *goquery.Selection) {
		name, ok := field.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, disabled := field.Attr("disabled"); disabled {
			return
		}
		switch goquery.NodeName(field) {
		case "textarea":
			values.Add(name, field.AttrOr("value", field.Text()))
		case "select":
			option := field.Find("option[selected]").First()
			if option.Length() == 0 {
				option = field.Find("option").First()
			}
			if option.Length() > 0 {
				values.Add(name, option.AttrOr("value", strings.TrimSpace(option.Text())))
			}
		default:
			switch strings.ToLower(field.AttrOr("type", "text")) {
			case "submit", "button", "image", "reset", "file":
				return
			case "checkbox", "radio":
				if _, checked := field.Attr("checked"); !checked {
					return
				}
				values.Add(name, field.AttrOr("value", "on"))
			default:
				values.Add(name, field.AttrOr("value", ""))
			}
		}
	})
	if name, ok := s.doc.FindNodes(submitter).Attr("name"); ok && name != "" {
		values.Add(name, s.doc.FindNodes(submitter).AttrOr("value", ""))
	}

	if method == http.MethodPost {
		return s.load(ctx, http.MethodPost, action.String(), values)
	}
	action.RawQuery = values.Encode()
	return s.load(ctx, http.MethodGet, action.String(), nil)
}

func (s *StaticEngine) Fill(_ context.Context, el Element, value string) error {
	sel, _, err := s.element("fill", el)
	if err != nil {
		return err
	}
	sel.SetAttr("value", value)
	return nil
}

func (s *StaticEngine) Title(context.Context) (string, error) {
	if s.doc == nil {
		return "", nil
	}
	return strings.TrimSpace(s.doc.Find("title").First().Text()), nil
}

func (s *StaticEngine) Cookies(context.Context) ([]Cookie, error) {
	if s.current == nil {
		return nil, nil
	}
	cookies := s.jar.Cookies(s.current)
	ret := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		ret = append(ret, Cookie{Name: c.Name, Value: c.Value, URL: s.current.String()})
	}
	return ret, nil
}

func (s *StaticEngine) SetCookies(_ context.Context, cookies []Cookie) error {
	for _, c := range cookies {
		u, err := cookieURL(c, s.current)
		if err != nil {
			return framework.InfrastructureFault{Op: "set cookie " + c.Name, Err: err}
		}
		hc := &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path}
		if c.Domain != "" && c.URL == "" {
			hc.Domain = c.Domain
		}
		s.jar.SetCookies(u, []*http.Cookie{hc})
	}
	return nil
}

func (s *StaticEngine) Close() error {
	s.doc = nil
	s.client.CloseIdleConnections()
	return nil
}

func cookieURL(c Cookie, current *url.URL) (*url.URL, error) {
	switch {
	case c.URL != "":
		return url.Parse(c.URL)
	case c.Domain != "":
		scheme := "http"
		if current != nil {
			scheme = current.Scheme
		}
		return &url.URL{Scheme: scheme, Host: strings.TrimPrefix(c.Domain, "."), Path: "/"}, nil
	case current != nil:
		return current, nil
	}
	return nil, errNoPage
}

func isSubmitControl(n *html.Node) bool {
	typ := ""
	for _, a := range n.Attr {
		if a.Key == "type" {
			typ = strings.ToLower(a.Val)
		}
	}
	switch n.Data {
	case "button":
		return typ == "" || typ == "submit"
	case "input":
		return typ == "submit" || typ == "image"
	}
	return false
}

func enclosingForm(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "form" {
			return p
		}
	}
	return nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var hiddenElements = map[string]bool{ //nolint:gochecknoglobals
	"head": true, "script": true, "style": true, "noscript": true, "template": true,
}

var blockElements = map[string]bool{ //nolint:gochecknoglobals
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "details": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "option": true, "p": true, "pre": true,
	"section": true, "summary": true, "table": true, "tr": true, "ul": true,
}

func renderedText(root *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if hiddenElements[n.Data] {
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		cell := n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th")
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		switch {
		case block:
			b.WriteByte('\n')
		case cell:
			b.WriteByte('\t')
		}
	}
	walk(root)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = collapseSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
