package catalogtests

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

const (
	fakeCookieName  = "botflag"
	fakeCookieValue = "1"
	fakeSessionName = "catalog_session"
	fakeUsername    = "patron"
	fakePassword    = "secret"
)

// fakeCatalog serves just enough of the catalog's pages, in either UI generation, for the
// scenario tree to run against it through the static engine.
type fakeCatalog struct {
	upcoming bool

	// Overrides of the normal behavior, each of which breaks one check.
	placeholdOnUnrequestable bool
	staffLinkInUpcoming      bool
	placeholderData          bool
	omitLandmark             bool
	missingRecords           map[string]bool
	resultCount              string
	// extraContent is appended to the main element of every page.
	extraContent string

	// slowRecord is a record ID whose page never finishes loading.
	slowRecord string

	lock     sync.Mutex
	requests []string
}

func (c *fakeCatalog) start(t *testing.T) *httptest.Server {
	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.lock.Lock()
			c.requests = append(c.requests, r.Method+" "+r.URL.RequestURI())
			c.lock.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	router.HandleFunc("/", c.home).Methods("GET")
	router.HandleFunc("/Record/{id}", c.record).Methods("GET")
	router.HandleFunc("/Search/Results", c.search).Methods("GET")
	router.HandleFunc("/MyResearch/UserLogin", c.loginForm).Methods("GET")
	router.HandleFunc("/MyResearch/UserLogin", c.login).Methods("POST")
	router.HandleFunc("/MyResearch/Profile", c.profile).Methods("GET")
	router.HandleFunc("/MyResearch/Logout", c.logout).Methods("GET")
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func (c *fakeCatalog) requestCount(prefix string) int {
	c.lock.Lock()
	defer c.lock.Unlock()
	n := 0
	for _, r := range c.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (c *fakeCatalog) signedIn(r *http.Request) bool {
	cookie, err := r.Cookie(fakeSessionName)
	return err == nil && cookie.Value == fakeUsername
}

func (c *fakeCatalog) page(w http.ResponseWriter, r *http.Request, title, content string) {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body>\n", html.EscapeString(title))
	if c.upcoming {
		b.WriteString(`<header data-header>`)
		if c.signedIn(r) {
			b.WriteString(`<nav data-account-menu><a href="/MyResearch/Logout">Log out</a></nav>`)
		}
	} else {
		b.WriteString(`<header class="navbar">`)
		if c.signedIn(r) {
			b.WriteString(`<ul id="logoutOptions"><li><a href="/MyResearch/Logout">Log Out</a></li></ul>`)
		}
		b.WriteString(`<a class="staff-view-link" href="/Staff">Staff view</a>`)
	}
	if !c.omitLandmark {
		b.WriteString(`<ul id="loginOptions"><li><a href="/MyResearch/UserLogin">Login</a></li></ul>`)
	}
	if c.upcoming && c.staffLinkInUpcoming {
		b.WriteString(`<a class="staff-view-link" href="/Staff">Staff view</a>`)
	}
	b.WriteString("</header>\n<main>")
	b.WriteString(content)
	b.WriteString(c.extraContent)
	if c.placeholderData {
		b.WriteString(`<p>Lorem ipsum fake record data</p>`)
	}
	b.WriteString("</main></body></html>")
	_, _ = w.Write([]byte(b.String()))
}

func (c *fakeCatalog) home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get(fakeCookieName) != "" {
		http.SetCookie(w, &http.Cookie{Name: fakeCookieName, Value: r.URL.Query().Get(fakeCookieName), Path: "/"})
	}
	title := "Search Home"
	if c.upcoming {
		title = "Library Catalog"
	}
	c.page(w, r, title, `<form action="/Search/Results"><input name="lookfor"></form>`)
}

func (c *fakeCatalog) record(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == c.slowRecord {
		<-r.Context().Done()
		return
	}
	if c.missingRecords[id] {
		http.NotFound(w, r)
		return
	}
	var content string
	switch id {
	case "12345":
		content = c.holdings(true, "")
	case "677843":
		content = c.holdings(c.placeholdOnUnrequestable, "")
	case "742590":
		content = c.holdings(false, `<h3>Summary Holdings</h3><p>v.1-v.20</p>`)
	case "12639":
		if c.upcoming {
			content = `<section data-holdings><p data-login-prompt>Log in for access</p></section>`
		} else {
			content = `<div class="holdings-tab"><div id="loginOptions">Log in for access</div></div>`
		}
	case "1092692":
		content = c.holdings(false, `<h3>This item is bound with: </h3><ul><li>Another title</li></ul>`)
	case "10664764":
		if c.upcoming {
			content = `<nav><a data-tab=findingaid href="#">Finding Aid</a></nav>`
		} else {
			content = `<ul><li class="record-tab findingaid"><a href="#">Finding Aid</a></li></ul>`
		}
	default:
		content = c.holdings(false, "")
	}
	c.page(w, r, "Record "+id, content)
}

func (c *fakeCatalog) holdings(requestable bool, extra string) string {
	if c.upcoming {
		button := ""
		if requestable {
			button = `<button data-request-button>Request</button>`
		}
		return `<section data-holdings>` + extra + button + `</section>`
	}
	link := ""
	if requestable {
		link = `<a class="placehold" href="/Hold">Request</a>`
	}
	return `<div class="holdings-tab">` + extra + link + `</div>`
}

func (c *fakeCatalog) search(w http.ResponseWriter, r *http.Request) {
	count := c.resultCount
	if count == "" {
		count = "1,234,567"
	}
	if c.upcoming {
		c.page(w, r, "Search Results", fmt.Sprintf(`<p>Results: <span data-result-count>%s</span></p>`, count))
		return
	}
	c.page(w, r, "Search Results",
		fmt.Sprintf(`<div class="search-stats">Showing 1 - 20 of <span class="total">%s</span></div>`, count))
}

func (c *fakeCatalog) loginForm(w http.ResponseWriter, r *http.Request) {
	c.page(w, r, "Login", `<form method="post" action="/MyResearch/UserLogin">
<input type="text" name="username"><input type="password" name="password">
<input type="submit" name="processLogin" value="Login"></form>`)
}

func (c *fakeCatalog) login(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	if r.PostForm.Get("username") != fakeUsername || r.PostForm.Get("password") != fakePassword ||
		r.PostForm.Get("processLogin") == "" {
		c.page(w, r, "Login", `<p class="alert">Invalid login</p>`)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: fakeSessionName, Value: fakeUsername, Path: "/"})
	r.AddCookie(&http.Cookie{Name: fakeSessionName, Value: fakeUsername})
	c.page(w, r, "Your Account", `<p>Welcome back</p>`)
}

func (c *fakeCatalog) profile(w http.ResponseWriter, r *http.Request) {
	if !c.signedIn(r) {
		c.loginForm(w, r)
		return
	}
	if c.upcoming {
		c.page(w, r, "Profile", `<div data-profile><h1>Your Profile</h1></div>`)
		return
	}
	c.page(w, r, "Profile", `<div class="myresearch-main"><h2>Your Profile</h2></div>`)
}

func (c *fakeCatalog) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: fakeSessionName, Value: "", Path: "/", MaxAge: -1})
	c.page(w, &http.Request{Header: http.Header{}}, "Search Home", `<p>You have been logged out</p>`)
}
