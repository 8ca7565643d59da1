package gemini

import (
	"reflect"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"stockiq/internal/types"
)

var schemaTypes = map[types.SchemaKind]reflect.Type{
	types.SchemaScorecard:   reflect.TypeOf(types.Scorecard{}),
	types.SchemaTechnical:   reflect.TypeOf(types.TechnicalScorecard{}),
	types.SchemaFundamental: reflect.TypeOf(types.FundamentalScorecard{}),
	types.SchemaCompiled:    reflect.TypeOf(types.CompiledScorecard{}),
}

// SchemaFor derives the response schema for kind from the verdict struct's
// json and validate tags. It returns nil for free-form output.
func SchemaFor(kind types.SchemaKind) *genai.Schema {
	t, ok := schemaTypes[kind]
	if !ok {
		return nil
	}
	return schemaOf(t, "")
}

func schemaOf(t reflect.Type, rules string) *genai.Schema {
	s := &genai.Schema{}
	switch t.Kind() {
	case reflect.Struct:
		s.Type = genai.TypeObject
		s.Properties = map[string]*genai.Schema{}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := strings.Split(f.Tag.Get("json"), ",")[0]
			if name == "" || name == "-" {
				continue
			}
			s.Properties[name] = schemaOf(f.Type, f.Tag.Get("validate"))
			s.Required = append(s.Required, name)
			s.PropertyOrdering = append(s.PropertyOrdering, name)
		}
		return s
	case reflect.Slice, reflect.Array:
		s.Type = genai.TypeArray
		s.Items = schemaOf(t.Elem(), "")
	case reflect.String:
		s.Type = genai.TypeString
	case reflect.Int, reflect.Int32, reflect.Int64:
		s.Type = genai.TypeInteger
	case reflect.Float32, reflect.Float64:
		s.Type = genai.TypeNumber
	case reflect.Bool:
		s.Type = genai.TypeBoolean
	}
	applyRules(s, rules)
	return s
}

func applyRules(s *genai.Schema, rules string) {
	for _, rule := range strings.Split(rules, ",") {
		key, val, _ := strings.Cut(rule, "=")
		switch key {
		case "gte":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				s.Minimum = genai.Ptr(f)
			}
		case "lte":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				s.Maximum = genai.Ptr(f)
			}
		case "min", "max", "len":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil || s.Type != genai.TypeArray {
				continue
			}
			if key != "max" {
				s.MinItems = genai.Ptr(n)
			}
			if key != "min" {
				s.MaxItems = genai.Ptr(n)
			}
		case "eq":
			s.Enum = []string{val}
		case "oneof":
			s.Enum = oneOfValues(val)
		}
	}
}

// oneOfValues splits a validator oneof list, honouring single quotes.
func oneOfValues(list string) []string {
	var out []string
	for len(list) > 0 {
		list = strings.TrimLeft(list, " ")
		if list == "" {
			break
		}
		if list[0] == '\'' {
			end := strings.IndexByte(list[1:], '\'')
			if end < 0 {
				out = append(out, list[1:])
				break
			}
			out = append(out, list[1:end+1])
			list = list[end+2:]
			continue
		}
		word, rest, _ := strings.Cut(list, " ")
		out = append(out, word)
		list = rest
	}
	return out
}
