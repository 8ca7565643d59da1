package analyst

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"stockiq/internal/logger"
	"stockiq/internal/types"
)

const rawLogLimit = 2000

// Coerce parses text into T. The whole text is tried first, then the span
// from the first '{' to the last '}'. Either attempt must satisfy the full
// schema: every declared key present and non-null, no undeclared keys, and
// every validate tag.
func Coerce[T any](ctx context.Context, analystName string, kind types.SchemaKind, text string) (*T, error) {
	v, strictErr := parseStrict[T](text)
	if strictErr == nil {
		return v, nil
	}

	logger.Debug(ctx, "Analyst raw response",
		"analyst", analystName,
		"schema", string(kind),
		"error", strictErr.Error(),
		"raw", truncateRaw(text),
	)

	obj, err := extractJSONObject(text)
	if err == nil {
		v, err = parseStrict[T](obj)
		if err == nil {
			return v, nil
		}
		logger.Debug(ctx, "Analyst extracted object rejected",
			"analyst", analystName,
			"schema", string(kind),
			"error", err.Error(),
			"raw", truncateRaw(obj),
		)
	}

	return nil, &types.ResponseFormatError{Analyst: analystName, Schema: kind, Err: err}
}

func parseStrict[T any](text string) (*T, error) {
	data := []byte(strings.TrimSpace(text))

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var zero T
	if err := checkShape(raw, reflect.TypeOf(zero), ""); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var v T
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := types.Validate(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

func extractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", errors.New("response contains no JSON object")
	}
	return text[start : end+1], nil
}

// checkShape walks decoded JSON against the json tags of t. The standard
// decoder matches keys case-insensitively and leaves missing keys at their
// zero value, so presence and exact names are checked here.
func checkShape(v any, t reflect.Type, path string) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		obj, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected an object", where(path))
		}
		known := make(map[string]struct{}, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			name, optional := jsonField(t.Field(i))
			if name == "" {
				continue
			}
			known[name] = struct{}{}
			fv, present := obj[name]
			if !present || fv == nil {
				if optional {
					continue
				}
				return fmt.Errorf("%s: field required", join(path, name))
			}
			if err := checkShape(fv, t.Field(i).Type, join(path, name)); err != nil {
				return err
			}
		}
		var extra []string
		for k := range obj {
			if _, ok := known[k]; !ok {
				extra = append(extra, k)
			}
		}
		if len(extra) > 0 {
			sort.Strings(extra)
			return fmt.Errorf("%s: extra field not permitted", join(path, extra[0]))
		}

	case reflect.Slice, reflect.Array:
		arr, ok := v.([]any)
		if !ok {
			return fmt.Errorf("%s: expected an array", where(path))
		}
		for i, item := range arr {
			p := fmt.Sprintf("%s[%d]", where(path), i)
			if item == nil {
				return fmt.Errorf("%s: null element", p)
			}
			if err := checkShape(item, t.Elem(), p); err != nil {
				return err
			}
		}
	}
	return nil
}

func jsonField(f reflect.StructField) (name string, optional bool) {
	if !f.IsExported() {
		return "", false
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = f.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			optional = true
		}
	}
	return name, optional
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func where(path string) string {
	if path == "" {
		return "value"
	}
	return path
}

func truncateRaw(text string) string {
	if len(text) <= rawLogLimit {
		return text
	}
	return text[:rawLogLimit] + "...[truncated]"
}
