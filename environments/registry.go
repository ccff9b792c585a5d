package environments

import (
	"fmt"
	"iter"
	"net/url"
	"os"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Registry is the ordered, read-only list of environments loaded from one file.
type Registry struct {
	settings    Settings
	descriptors []Descriptor
}

// LoadOptions controls how Load reads an environments file.
type LoadOptions struct {
	// Source names the data in error messages, usually the file path.
	Source string

	// LookupEnv resolves <env:NAME> references. If nil, any such reference is an error.
	LookupEnv LookupEnvFunc
}

// LoadFile reads an environments file, resolving <env:NAME> references from the process
// environment.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, ConfigurationError{Source: path, Problems: []string{err.Error()}}
	}
	return Load(data, LoadOptions{Source: path, LookupEnv: os.LookupEnv})
}

// Load parses and validates environments data in JSON or YAML format. Any problem is returned as
// a ConfigurationError.
func Load(data []byte, options LoadOptions) (*Registry, error) {
	lookupEnv := options.LookupEnv
	if lookupEnv == nil {
		lookupEnv = func(string) (string, bool) { return "", false }
	}
	fail := func(problems ...string) error {
		return ConfigurationError{Source: options.Source, Problems: problems}
	}

	expanded, err := expandSubstitutions(data, lookupEnv)
	if err != nil {
		return nil, fail(err.Error())
	}
	var file fileConfig
	if err := ParseJSONOrYAML(expanded, &file); err != nil {
		return nil, fail(err.Error())
	}

	settings, problems := file.settings()
	problems = append(problems, validateDescriptors(file.Environments)...)
	if len(problems) != 0 {
		return nil, fail(problems...)
	}
	return &Registry{settings: settings, descriptors: file.Environments}, nil
}

func validateDescriptors(descriptors []Descriptor) []string {
	if len(descriptors) == 0 {
		return []string{"no environments are defined"}
	}
	var problems []string
	seen := make(map[string]bool)
	for i, d := range descriptors {
		label := fmt.Sprintf("environments[%d]", i)
		if d.Name == "" {
			problems = append(problems, label+": name is required")
		} else {
			label = fmt.Sprintf("environment %q", d.Name)
			if seen[d.Name] {
				problems = append(problems, label+": name is used more than once")
			}
			seen[d.Name] = true
		}
		if d.BaseURL == "" {
			problems = append(problems, label+": base_url is required")
		} else if err := checkAbsoluteURL(d.BaseURL); err != nil {
			problems = append(problems, fmt.Sprintf("%s: base_url %s", label, err))
		}
		if d.Expected.CookieName.IsDefined() != d.Expected.CookieValue.IsDefined() {
			problems = append(problems, label+": cookie_name and cookie_value must be given together")
		}
		rangeNames := maps.Keys(d.Expected.NumericRanges)
		slices.Sort(rangeNames)
		for _, name := range rangeNames {
			r := d.Expected.NumericRanges[name]
			if !(r.Min < r.Max) {
				problems = append(problems, fmt.Sprintf("%s: numeric range %q must have min < max, got %s", label, name, r))
			}
		}
		for j, c := range d.Expected.Credentials {
			if c.Username == "" {
				problems = append(problems, fmt.Sprintf("%s: credentials[%d] has no username", label, j))
			}
		}
	}
	return problems
}

func checkAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must use http or https", raw)
	}
	return nil
}

// Settings returns the run-wide settings.
func (r *Registry) Settings() Settings { return r.settings }

// Len returns the number of environments.
func (r *Registry) Len() int { return len(r.descriptors) }

// Names returns the environment names in declared order.
func (r *Registry) Names() []string {
	ret := make([]string, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		ret = append(ret, d.Name)
	}
	return ret
}

// Iterate yields a copy of each descriptor in declared order. Every call starts a new pass over
// the same loaded data; the data itself is never reloaded.
func (r *Registry) Iterate() iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		for _, d := range r.descriptors {
			if !yield(d.clone()) {
				return
			}
		}
	}
}

// Lookup finds an environment by name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	for _, d := range r.descriptors {
		if d.Name == name {
			return d.clone(), true
		}
	}
	return Descriptor{}, false
}

// Select returns a registry containing only the named environments, in their original order.
// Unknown names are an error.
func (r *Registry) Select(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	wanted := make(map[string]bool)
	for _, n := range names {
		if _, ok := r.Lookup(n); !ok {
			return nil, ConfigurationError{Problems: []string{fmt.Sprintf("unknown environment %q", n)}}
		}
		wanted[n] = true
	}
	ret := &Registry{settings: r.settings}
	for _, d := range r.descriptors {
		if wanted[d.Name] {
			ret.descriptors = append(ret.descriptors, d)
		}
	}
	return ret, nil
}
