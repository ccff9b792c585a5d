package framework

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/libcatalog/catalog-test-harness/framework/opt"
)

// FlagFutureVersion selects the upcoming generation of the catalog interface.
const FlagFutureVersion = "future_version"

// FeatureFlags is the set of boolean flags declared for one environment. Flags that are
// not declared are false.
type FeatureFlags map[string]bool

// Enabled returns true if the named flag is declared and set.
func (f FeatureFlags) Enabled(name string) bool {
	return f[name]
}

func (f FeatureFlags) String() string {
	names := maps.Keys(f)
	slices.Sort(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		if f[name] {
			parts = append(parts, name+"=on")
		} else {
			parts = append(parts, name+"=off")
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// UIGeneration identifies which structurally different version of the interface an
// environment serves.
type UIGeneration int

const (
	LegacyUI UIGeneration = iota
	UpcomingUI
)

func (g UIGeneration) String() string {
	if g == UpcomingUI {
		return "upcoming"
	}
	return "legacy"
}

// ResolvedFlags is the result of resolving an environment's flags once, before any of its
// cases run. It is never recomputed during the run.
type ResolvedFlags struct {
	Generation UIGeneration
	flags      FeatureFlags
}

// ResolveFlags computes the UI generation for a set of flags. It is a pure function of its
// input and keeps its own copy of the flags.
func ResolveFlags(flags FeatureFlags) ResolvedFlags {
	copied := make(FeatureFlags, len(flags))
	for k, v := range flags {
		copied[k] = v
	}
	ret := ResolvedFlags{Generation: LegacyUI, flags: copied}
	if copied.Enabled(FlagFutureVersion) {
		ret.Generation = UpcomingUI
	}
	return ret
}

// Enabled reports the value of any flag as it was at resolution time.
func (r ResolvedFlags) Enabled(name string) bool { return r.flags.Enabled(name) }

func (r ResolvedFlags) String() string {
	return r.Generation.String() + " " + r.flags.String()
}

// Alternatives holds the mutually exclusive expectations for the two UI generations. A side
// with no value means that the check does not apply to that generation at all.
type Alternatives[V any] struct {
	Legacy   opt.Maybe[V]
	Upcoming opt.Maybe[V]
}

// Both declares an expectation that differs between the generations.
func Both[V any](legacy, upcoming V) Alternatives[V] {
	return Alternatives[V]{Legacy: opt.Some(legacy), Upcoming: opt.Some(upcoming)}
}

// LegacyOnly declares an expectation that is meaningless for the upcoming generation.
func LegacyOnly[V any](legacy V) Alternatives[V] {
	return Alternatives[V]{Legacy: opt.Some(legacy)}
}

// UpcomingOnly declares an expectation that is meaningless for the legacy generation.
func UpcomingOnly[V any](upcoming V) Alternatives[V] {
	return Alternatives[V]{Upcoming: opt.Some(upcoming)}
}

// For selects the alternative for a generation. Exactly one side is ever consulted.
func (a Alternatives[V]) For(g UIGeneration) opt.Maybe[V] {
	if g == UpcomingUI {
		return a.Upcoming
	}
	return a.Legacy
}
