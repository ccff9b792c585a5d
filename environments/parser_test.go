package environments

import (
	"encoding/json"
	"testing"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testJSONOrYAMLStruct struct {
	Name string `json:"name"`
	On   bool   `json:"on"`
	Ints []int  `json:"ints"`
}

func TestParseJSONOrYAML(t *testing.T) {
	for _, params := range []struct {
		desc  string
		input string
	}{
		{"JSON", `{"name":"x","on":true,"ints":[1,2]}`},
		{"YAML", `---
name: x
on: true
ints:
  - 1
  - 2
`},
	} {
		t.Run(params.desc, func(t *testing.T) {
			var out testJSONOrYAMLStruct
			require.NoError(t, ParseJSONOrYAML([]byte(params.input), &out))
			assert.Equal(t, "x", out.Name)
			assert.True(t, out.On)
			assert.Equal(t, []int{1, 2}, out.Ints)
		})
	}
}

func TestParseJSONReportsTypeErrorsDirectly(t *testing.T) {
	var out testJSONOrYAMLStruct
	err := ParseJSONOrYAML([]byte(`{"name":"x","ints":"not a list"}`), &out)
	require.Error(t, err)
	var typeErr *json.UnmarshalTypeError
	assert.ErrorAs(t, err, &typeErr)
}

func TestParseYAMLRejectsNonStringKeys(t *testing.T) {
	var out map[string]interface{}
	err := ParseJSONOrYAML([]byte("values:\n  1: x\n"), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only string keys are allowed")
}

func TestCanUseYAMLAnchorReferences(t *testing.T) {
	input := `---
shared: &shared_expectations
  cookie_name: botflag
  cookie_value: "1"

environments:
  staging:
    <<: *shared_expectations
    record_ids: {print: "12345"}
`
	expected := `{
  "staging": {
    "cookie_name": "botflag",
    "cookie_value": "1",
    "record_ids": {"print": "12345"}
  }
}`

	var s struct {
		Environments map[string]interface{} `json:"environments"`
	}
	require.NoError(t, ParseJSONOrYAML([]byte(input), &s))
	actual, err := json.Marshal(s.Environments)
	require.NoError(t, err)
	m.In(t).Assert(actual, m.JSONStrEqual(expected))
}
