package environments

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/libcatalog/catalog-test-harness/framework/harness"
	"github.com/libcatalog/catalog-test-harness/framework/helpers"
	"github.com/libcatalog/catalog-test-harness/framework/opt"
)

const (
	DefaultLandmarkID      = "loginOptions"
	DefaultForbiddenText   = "fake"
	DefaultLandmarkTimeout = 5 * time.Second
	DefaultWaitTimeout     = 5 * time.Second
	DefaultAbsenceTimeout  = 2 * time.Second
)

var errLandmarkStrategy = errors.New("readiness.landmark must set exactly one of css, xpath, id")

// Duration is a time.Duration that is written in the environments file either as a Go duration
// string ("1500ms", "5s") or as a number of milliseconds.
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q", s)
		}
		*d = Duration(parsed)
		return nil
	}
	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("duration must be a string or a number of milliseconds, got %s", string(data))
	}
	*d = Duration(time.Duration(ms * float64(time.Millisecond)))
	return nil
}

// LandmarkSelector is the serialized form of a harness.Selector. Exactly one field may be set.
type LandmarkSelector struct {
	CSS   string `json:"css"`
	XPath string `json:"xpath"`
	ID    string `json:"id"`
}

func (l LandmarkSelector) selector() (harness.Selector, error) {
	var ret []harness.Selector
	if l.CSS != "" {
		ret = append(ret, harness.CSS(l.CSS))
	}
	if l.XPath != "" {
		ret = append(ret, harness.XPath(l.XPath))
	}
	if l.ID != "" {
		ret = append(ret, harness.ID(l.ID))
	}
	if len(ret) != 1 {
		return harness.Selector{}, errLandmarkStrategy
	}
	return ret[0], nil
}

type readinessConfig struct {
	Landmark        *LandmarkSelector   `json:"landmark"`
	LandmarkTimeout opt.Maybe[Duration] `json:"landmark_timeout"`
	ForbiddenText   opt.Maybe[string]   `json:"forbidden_text"`
}

type timeoutsConfig struct {
	Wait         opt.Maybe[Duration] `json:"wait"`
	Absence      opt.Maybe[Duration] `json:"absence"`
	PollInterval opt.Maybe[Duration] `json:"poll_interval"`
}

type fileConfig struct {
	BootstrapURL string          `json:"bootstrap_url"`
	Readiness    readinessConfig `json:"readiness"`
	Timeouts     timeoutsConfig  `json:"timeouts"`
	Environments []Descriptor    `json:"environments"`
}

// Settings are the run-wide options from the environments file, with defaults applied.
type Settings struct {
	// BootstrapURL is visited once before any environment runs. It defaults to the base URL of
	// the first environment.
	BootstrapURL string

	// Landmark is the element whose presence shows that the application has fully loaded.
	Landmark harness.Selector

	LandmarkTimeout time.Duration

	// ForbiddenText must never appear in a page body. An empty string disables the check.
	ForbiddenText string

	WaitTimeout    time.Duration
	AbsenceTimeout time.Duration
	PollInterval   time.Duration
}

func (f fileConfig) settings() (Settings, []string) {
	var problems []string
	s := Settings{
		BootstrapURL:    f.BootstrapURL,
		Landmark:        harness.ID(DefaultLandmarkID),
		LandmarkTimeout: f.Readiness.LandmarkTimeout.OrElse(Duration(DefaultLandmarkTimeout)).Duration(),
		ForbiddenText:   f.Readiness.ForbiddenText.OrElse(DefaultForbiddenText),
		WaitTimeout:     f.Timeouts.Wait.OrElse(Duration(DefaultWaitTimeout)).Duration(),
		AbsenceTimeout:  f.Timeouts.Absence.OrElse(Duration(DefaultAbsenceTimeout)).Duration(),
		PollInterval:    f.Timeouts.PollInterval.OrElse(Duration(helpers.DefaultPollInterval)).Duration(),
	}
	if f.Readiness.Landmark != nil {
		landmark, err := f.Readiness.Landmark.selector()
		if err != nil {
			problems = append(problems, err.Error())
		} else {
			s.Landmark = landmark
		}
	}
	if s.BootstrapURL == "" && len(f.Environments) != 0 {
		s.BootstrapURL = f.Environments[0].BaseURL
	} else if s.BootstrapURL != "" {
		if err := checkAbsoluteURL(s.BootstrapURL); err != nil {
			problems = append(problems, fmt.Sprintf("bootstrap_url %s", err))
		}
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"readiness.landmark_timeout", s.LandmarkTimeout},
		{"timeouts.wait", s.WaitTimeout},
		{"timeouts.absence", s.AbsenceTimeout},
		{"timeouts.poll_interval", s.PollInterval},
	} {
		if d.value <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive", d.name))
		}
	}
	return s, problems
}
