// Package options normalizes select-option payloads into a single shape.
//
// Question catalogs store choices either as bare strings or as value/label pairs,
// and numeric values show up from older rows. Everything is converted to []Option
// once, where the data enters the process.
package options

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Kind tags which variant a Source holds.
type Kind int

const (
	KindEmpty Kind = iota
	KindStrings
	KindPairs
)

// Source is the raw option list as stored or submitted.
type Source struct {
	Kind    Kind
	Strings []string
	Pairs   []Option
}

func FromStrings(values ...string) Source {
	return Source{Kind: KindStrings, Strings: values}
}

func FromPairs(pairs ...Option) Source {
	return Source{Kind: KindPairs, Pairs: pairs}
}

// Normalize returns the canonical list. Empty labels fall back to the value.
func Normalize(src Source) []Option {
	switch src.Kind {
	case KindStrings:
		out := make([]Option, 0, len(src.Strings))
		for _, s := range src.Strings {
			out = append(out, Option{Value: s, Label: s})
		}
		return out
	case KindPairs:
		out := make([]Option, 0, len(src.Pairs))
		for _, p := range src.Pairs {
			if p.Label == "" {
				p.Label = p.Value
			}
			out = append(out, p)
		}
		return out
	}
	return []Option{}
}

// UnmarshalJSON accepts either ["a","b"] or [{"value":..,"label":..}].
func (s *Source) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = Source{}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return fmt.Errorf("options must be an array: %w", err)
	}
	if len(items) == 0 {
		*s = Source{}
		return nil
	}
	first := bytes.TrimSpace(items[0])
	if len(first) > 0 && first[0] == '{' {
		pairs := make([]Option, 0, len(items))
		for _, raw := range items {
			var p struct {
				Value json.RawMessage `json:"value"`
				Label string          `json:"label"`
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return fmt.Errorf("invalid option: %w", err)
			}
			v, err := scalarString(p.Value)
			if err != nil {
				return err
			}
			pairs = append(pairs, Option{Value: v, Label: p.Label})
		}
		*s = FromPairs(pairs...)
		return nil
	}
	values := make([]string, 0, len(items))
	for _, raw := range items {
		v, err := scalarString(raw)
		if err != nil {
			return err
		}
		values = append(values, v)
	}
	*s = FromStrings(values...)
	return nil
}

// MarshalJSON always writes the canonical pair form.
func (s Source) MarshalJSON() ([]byte, error) {
	return json.Marshal(Normalize(s))
}

// Parse decodes a stored options column. An empty column yields an empty list.
func Parse(raw string) ([]Option, error) {
	if raw == "" {
		return []Option{}, nil
	}
	var src Source
	if err := json.Unmarshal([]byte(raw), &src); err != nil {
		return nil, err
	}
	return Normalize(src), nil
}

// Encode stores options in canonical form.
func Encode(opts []Option) (string, error) {
	if len(opts) == 0 {
		return "", nil
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Contains reports whether value is one of the option values.
func Contains(opts []Option, value string) bool {
	for _, o := range opts {
		if o.Value == value {
			return true
		}
	}
	return false
}

var errNotScalar = errors.New("option value must be a string or number")

func scalarString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", errNotScalar
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[', 'n', 't', 'f':
		return "", errNotScalar
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", errNotScalar
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}
