package analyzer

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/ats-analyzer/internal/ai"
)

const (
	probeString       = "string"
	probeCallableText = "callable_text"
	probeResponseText = "response_text"
	probeOutputText   = "output_text"
	probeOutputs      = "outputs"
	probeStringify    = "stringify"
	probeNil          = "nil"
)

// textAccessor is implemented by provider responses that expose their text
// through a method, e.g. *genai.GenerateContentResponse.
type textAccessor interface {
	Text() string
}

// envelope is the map-shaped view of a completion used by the field probes.
type envelope struct {
	Response   any `mapstructure:"response"`
	OutputText any `mapstructure:"outputText"`
	Outputs    any `mapstructure:"outputs"`
}

type shapeProbe struct {
	name  string
	match func(c ai.Completion, env *envelope) (string, bool)
}

// Order matters: the first probe that matches wins.
var shapeProbes = []shapeProbe{
	{name: probeString, match: matchString},
	{name: probeCallableText, match: matchCallableText},
	{name: probeResponseText, match: matchResponseText},
	{name: probeOutputText, match: matchOutputText},
	{name: probeOutputs, match: matchOutputs},
}

// Normalize extracts plain text from a completion of unknown shape and strips
// surrounding code fences. It always returns a string and also reports which
// shape matched.
func Normalize(c ai.Completion) (string, string) {
	if isNil(c) {
		return "", probeNil
	}

	env := toEnvelope(c)
	for _, probe := range shapeProbes {
		if text, ok := probe.match(c, env); ok {
			return stripCodeFences(text), probe.name
		}
	}

	return stripCodeFences(stringify(c)), probeStringify
}

func matchString(c ai.Completion, _ *envelope) (string, bool) {
	switch v := c.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

func matchCallableText(c ai.Completion, env *envelope) (string, bool) {
	if text, ok := callText(c); ok {
		return text, true
	}

	response, ok := member(c, "response")
	if !ok && env != nil {
		response, ok = env.Response, env.Response != nil
	}
	if !ok {
		return "", false
	}
	if text, ok := callText(response); ok {
		return text, true
	}
	if textMember, ok := member(response, "text"); ok {
		return callText(textMember)
	}
	return "", false
}

func matchResponseText(c ai.Completion, env *envelope) (string, bool) {
	if response, ok := member(c, "response"); ok {
		if text, ok := member(response, "text"); ok {
			if s, ok := text.(string); ok {
				return s, true
			}
		}
	}

	if env == nil {
		return "", false
	}
	response, ok := env.Response.(map[string]any)
	if !ok {
		return "", false
	}
	text, ok := response["text"].(string)
	return text, ok
}

func matchOutputText(_ ai.Completion, env *envelope) (string, bool) {
	if env == nil {
		return "", false
	}
	text, ok := env.OutputText.(string)
	return text, ok
}

func matchOutputs(_ ai.Completion, env *envelope) (string, bool) {
	if env == nil || env.Outputs == nil {
		return "", false
	}

	outputs := reflect.ValueOf(env.Outputs)
	if outputs.Kind() != reflect.Slice && outputs.Kind() != reflect.Array {
		return "", false
	}
	if outputs.Len() == 0 {
		return "", false
	}

	return stringify(outputs.Index(0).Interface()), true
}

// callText invokes a text accessor, treating a panic inside it as no match.
func callText(v any) (text string, ok bool) {
	if isNil(v) {
		return "", false
	}

	defer func() {
		if recover() != nil {
			text, ok = "", false
		}
	}()

	switch fn := v.(type) {
	case textAccessor:
		return fn.Text(), true
	case func() string:
		return fn(), true
	default:
		return "", false
	}
}

// member looks up a map key or an exported struct field by name, ignoring case.
// Pointers and interfaces are followed.
func member(v any, name string) (any, bool) {
	if isNil(v) {
		return nil, false
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		if value := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key())); value.IsValid() {
			return value.Interface(), true
		}
		for _, key := range rv.MapKeys() {
			if strings.EqualFold(key.String(), name) {
				return rv.MapIndex(key).Interface(), true
			}
		}
	case reflect.Struct:
		field := rv.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) })
		if field.IsValid() && field.CanInterface() {
			return field.Interface(), true
		}
	}

	return nil, false
}

// toEnvelope returns nil when the completion is not object-shaped.
func toEnvelope(c ai.Completion) *envelope {
	m, ok := c.(map[string]any)
	if !ok {
		data, err := json.Marshal(c)
		if err != nil {
			return nil
		}
		if err := json.Unmarshal(data, &m); err != nil {
			return nil
		}
	}

	var env envelope
	if err := mapstructure.Decode(m, &env); err != nil {
		return nil
	}
	return &env
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
			s = s[4:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
