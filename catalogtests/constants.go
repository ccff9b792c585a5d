package catalogtests

import (
	"github.com/libcatalog/catalog-test-harness/framework"
	"github.com/libcatalog/catalog-test-harness/framework/harness"
)

// Kinds of record that an environment can declare in expected.record_ids.
const (
	RecordPrint           = "print"
	RecordUnrequestable   = "unrequestable"
	RecordSummaryHoldings = "summary_holdings"
	RecordRestricted      = "restricted"
	RecordBoundWith       = "bound_with"
	RecordFindingAid      = "finding_aid"
)

// RangeSearchResults is the numeric range that the total hit count of an empty search must fall in.
const RangeSearchResults = "search_results"

// TokenSignedIn is granted by the sign-in case and required by the cases that follow it.
const TokenSignedIn = "signed-in"

const (
	homePath          = "/"
	searchAllPath     = "/Search/Results?lookfor=&type=AllFields"
	loginPath         = "/MyResearch/UserLogin"
	profilePath       = "/MyResearch/Profile"
	logoutPath        = "/MyResearch/Logout"
	summaryHoldingsH3 = "Summary Holdings"
	boundWithH3       = "This item is bound with: "
)

// The expected shape of each page in the two UI generations. A missing side means the check
// has no meaning for that generation.
var (
	homepageTitle = framework.Both( //nolint:gochecknoglobals
		"Search Home",
		"Library Catalog",
	)
	requestAffordance = framework.Both( //nolint:gochecknoglobals
		harness.CSS(".holdings-tab .placehold"),
		harness.CSS("[data-request-button]"),
	)
	restrictedLoginPrompt = framework.Both( //nolint:gochecknoglobals
		harness.CSS(".holdings-tab #loginOptions"),
		harness.CSS("[data-holdings] [data-login-prompt]"),
	)
	findingAidTab = framework.Both( //nolint:gochecknoglobals
		harness.CSS(".record-tab.findingaid"),
		harness.CSS("[data-tab=findingaid]"),
	)
	legacyOnlyLinks = framework.UpcomingOnly( //nolint:gochecknoglobals
		harness.CSS("a.staff-view-link"),
	)
	resultCount = framework.Both( //nolint:gochecknoglobals
		harness.CSS(".search-stats .total"),
		harness.CSS("[data-result-count]"),
	)
	signedInMarker = framework.Both( //nolint:gochecknoglobals
		harness.CSS("#logoutOptions"),
		harness.CSS("[data-account-menu]"),
	)
	profileHeading = framework.Both( //nolint:gochecknoglobals
		harness.CSS(".myresearch-main h2"),
		harness.CSS("[data-profile] h1"),
	)
)

// Fields of the sign-in form, which is the same in both generations.
var (
	usernameField = harness.CSS(`input[name="username"]`) //nolint:gochecknoglobals
	passwordField = harness.CSS(`input[name="password"]`) //nolint:gochecknoglobals
	loginButton   = harness.CSS(`[name="processLogin"]`)  //nolint:gochecknoglobals
	headings      = harness.CSS("h3")                     //nolint:gochecknoglobals
)
