package opt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cookieExpectation struct {
	Name  Maybe[string] `json:"cookie_name"`
	Value Maybe[string] `json:"cookie_value"`
}

func TestNoneAndSome(t *testing.T) {
	assert.False(t, None[string]().IsDefined())
	assert.Equal(t, "", None[string]().Value())
	assert.True(t, Some("").IsDefined())
	assert.Equal(t, "1", Some("1").Value())
}

func TestOrElse(t *testing.T) {
	assert.Equal(t, "fake", None[string]().OrElse("fake"))
	assert.Equal(t, "sample", Some("sample").OrElse("fake"))
}

func TestGet(t *testing.T) {
	value, ok := Some("1").Get()
	assert.True(t, ok)
	assert.Equal(t, "1", value)

	value, ok = None[string]().Get()
	assert.False(t, ok)
	assert.Equal(t, "", value)
}

func TestFromPtr(t *testing.T) {
	assert.Equal(t, None[string](), FromPtr((*string)(nil)))
	s := "holdings"
	assert.Equal(t, Some(s), FromPtr(&s))
}

func TestString(t *testing.T) {
	assert.Equal(t, "[none]", None[int]().String())
	assert.Equal(t, "3", Some(3).String())
	assert.Equal(t, "12345", Some(json.Number("12345")).String())
}

func TestUnmarshalOptionalProperties(t *testing.T) {
	var withCookie cookieExpectation
	require.NoError(t, json.Unmarshal([]byte(`{"cookie_name":"botflag","cookie_value":"1"}`), &withCookie))
	assert.Equal(t, Some("botflag"), withCookie.Name)
	assert.Equal(t, Some("1"), withCookie.Value)

	var withoutCookie cookieExpectation
	require.NoError(t, json.Unmarshal([]byte(`{"cookie_name":null}`), &withoutCookie))
	assert.False(t, withoutCookie.Name.IsDefined())
	assert.False(t, withoutCookie.Value.IsDefined())

	assert.Error(t, json.Unmarshal([]byte(`{"cookie_name":true}`), &withoutCookie))
}
