package environments

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/libcatalog/catalog-test-harness/framework"
	"github.com/libcatalog/catalog-test-harness/framework/opt"
)

// Descriptor is one configured deployment target, together with the data the catalog is expected
// to show there and the feature flags that select its UI generation.
//
// Descriptors handed out by a Registry are copies; changing one does not affect the registry or
// any other copy.
type Descriptor struct {
	Name         string                 `json:"name"`
	BaseURL      string                 `json:"base_url"`
	FeatureFlags framework.FeatureFlags `json:"feature_flags"`
	Expected     Expectations           `json:"expected"`
}

// Expectations is the baseline data for an environment.
type Expectations struct {
	// CookieName and CookieValue describe the sentinel cookie. Either both are set or neither is;
	// when neither is set the readiness check does not look at cookies.
	CookieName  opt.Maybe[string] `json:"cookie_name"`
	CookieValue opt.Maybe[string] `json:"cookie_value"`

	// RecordIDs maps a kind of record ("print", "finding_aid", ...) to the ID of a record of that
	// kind in this environment's catalog.
	RecordIDs map[string]RecordID `json:"record_ids"`

	NumericRanges map[string]Range `json:"numeric_ranges"`
	Credentials   []Credential     `json:"credentials"`
}

// RecordID is a catalog record identifier. In the environments file it can be written as either
// a string or a number.
type RecordID string

func (r *RecordID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("record ID must be a string or a number, got %s", string(data))
	}
	*r = RecordID(n.String())
	return nil
}

// Range is an inclusive range of acceptable values for a number shown by the catalog.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains returns true if Min <= value <= Max.
func (r Range) Contains(value float64) bool {
	return value >= r.Min && value <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", strconv.FormatFloat(r.Min, 'f', -1, 64),
		strconv.FormatFloat(r.Max, 'f', -1, 64))
}

// Credential is a catalog account used by the sign-in scenarios.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HasCookieExpectation returns true if the descriptor declares a sentinel cookie.
func (d Descriptor) HasCookieExpectation() bool {
	return d.Expected.CookieName.IsDefined() && d.Expected.CookieValue.IsDefined()
}

// RecordID looks up the record of the given kind.
func (d Descriptor) RecordID(kind string) (RecordID, bool) {
	id, ok := d.Expected.RecordIDs[kind]
	return id, ok
}

// NumericRange looks up a declared range.
func (d Descriptor) NumericRange(name string) (Range, bool) {
	r, ok := d.Expected.NumericRanges[name]
	return r, ok
}

// URL resolves a path against the environment's base URL. The path may contain a query string.
func (d Descriptor) URL(path string) string {
	return strings.TrimRight(d.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// RecordURL returns the URL of a record page.
func (d Descriptor) RecordURL(id RecordID) string {
	return d.URL("Record/" + url.PathEscape(string(id)))
}

func (d Descriptor) clone() Descriptor {
	ret := d
	if d.FeatureFlags != nil {
		ret.FeatureFlags = maps.Clone(d.FeatureFlags)
	}
	if d.Expected.RecordIDs != nil {
		ret.Expected.RecordIDs = maps.Clone(d.Expected.RecordIDs)
	}
	if d.Expected.NumericRanges != nil {
		ret.Expected.NumericRanges = maps.Clone(d.Expected.NumericRanges)
	}
	ret.Expected.Credentials = slices.Clone(d.Expected.Credentials)
	return ret
}
