package environments

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type substitutionSet map[string]ldvalue.Value

// LookupEnvFunc resolves <env:NAME> references. It has the signature of os.LookupEnv.
type LookupEnvFunc func(name string) (string, bool)

var envReferenceRegex = regexp.MustCompile(`<env:([A-Za-z_][A-Za-z0-9_]*)>`)

// expandSubstitutions applies the file's own "constants" section and then resolves environment
// variable references. Constants are replaced as typed JSON values when a quoted string consists of
// nothing but the reference, so `"<min_results>"` can stand for a number, and are interpolated
// as text everywhere else.
func expandSubstitutions(originalData []byte, lookupEnv LookupEnvFunc) ([]byte, error) {
	var substs struct {
		Constants substitutionSet `json:"constants"`
	}
	if err := ParseJSONOrYAML(originalData, &substs); err != nil {
		return nil, err
	}
	data := originalData
	if len(substs.Constants) != 0 {
		data = replaceVariables(data, substs.Constants)
	}
	return replaceEnvReferences(data, lookupEnv)
}

func replaceVariables(originalData []byte, substs substitutionSet) []byte {
	str := string(originalData)
	str = strings.ReplaceAll(str, `\u003c`, "<")
	str = strings.ReplaceAll(str, `\u003e`, ">")

	// Sorted so the result does not depend on map order when a constant's value mentions another.
	names := maps.Keys(substs)
	slices.Sort(names)
	for _, name := range names {
		value := substs[name]
		typedValueStr := value.JSONString()
		str = strings.ReplaceAll(str, `"<`+name+`>"`, typedValueStr)
		interpolatedValueStr := typedValueStr
		if value.IsString() {
			interpolatedValueStr = value.StringValue()
		}
		str = strings.ReplaceAll(str, "<"+name+">", interpolatedValueStr)
	}
	return []byte(str)
}

func replaceEnvReferences(data []byte, lookupEnv LookupEnvFunc) ([]byte, error) {
	var missing []string
	out := envReferenceRegex.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := string(envReferenceRegex.FindSubmatch(ref)[1])
		value, ok := lookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return ref
		}
		return []byte(value)
	})
	if len(missing) != 0 {
		return nil, fmt.Errorf("undefined environment variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
