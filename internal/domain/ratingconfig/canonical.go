package ratingconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Member is one key/value entry of a canonical object.
type Member struct {
	Key   string
	Value any
}

// Object is a JSON object whose members are kept in key order.
type Object []Member

// Get returns the value stored under key.
func (o Object) Get(key string) (any, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Canonicalize walks a JSON-like tree and returns it with every object's keys
// sorted lexicographically at every level. Arrays keep their order, scalars
// pass through. Values of other Go types are first reduced to their JSON
// tree.
func Canonicalize(v any) any {
	switch t := v.(type) {
	case nil, bool, string, json.Number,
		float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return v
	case map[string]any:
		out := make(Object, 0, len(t))
		for k, val := range t {
			out = append(out, Member{Key: k, Value: Canonicalize(val)})
		}
		sortMembers(out)
		return out
	case Object:
		out := make(Object, len(t))
		for i, m := range t {
			out[i] = Member{Key: m.Key, Value: Canonicalize(m.Value)}
		}
		sortMembers(out)
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Canonicalize(val)
		}
		return out
	default:
		tree, err := toTree(v)
		if err != nil {
			return v
		}
		return Canonicalize(tree)
	}
}

func sortMembers(o Object) {
	sort.SliceStable(o, func(i, j int) bool { return o[i].Key < o[j].Key })
}

// toTree reduces an arbitrary Go value to map[string]any / []any / scalars.
func toTree(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeTree(raw)
}

func decodeTree(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON document")
	}
	return tree, nil
}

// Document returns the hashed tree of the configuration. Empty dates become
// null; zero Beta and Tau are omitted so configurations written before those
// fields existed keep their hash.
func (c Configuration) Document() map[string]any {
	rating := map[string]any{
		"initialMu":        c.Rating.InitialMu,
		"initialSigma":     c.Rating.InitialSigma,
		"confidenceFactor": c.Rating.ConfidenceFactor,
		"decayRate":        c.Rating.DecayRate,
	}
	if c.Rating.Beta != 0 {
		rating["beta"] = c.Rating.Beta
	}
	if c.Rating.Tau != 0 {
		rating["tau"] = c.Rating.Tau
	}

	uma := make([]any, len(c.Scoring.Uma))
	for i, u := range c.Scoring.Uma {
		uma[i] = u
	}

	return map[string]any{
		"timeRange": map[string]any{
			"startDate": nullable(c.TimeRange.StartDate),
			"endDate":   nullable(c.TimeRange.EndDate),
			"name":      c.TimeRange.Name,
		},
		"rating": rating,
		"scoring": map[string]any{
			"oka": c.Scoring.Oka,
			"uma": uma,
		},
		"weights": map[string]any{
			"divisor": c.Weights.Divisor,
			"min":     c.Weights.Min,
			"max":     c.Weights.Max,
		},
		"qualification": map[string]any{
			"minGames":  c.Qualification.MinGames,
			"dropWorst": c.Qualification.DropWorst,
		},
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ParseDocument decodes a raw JSON document into a tree, keeping numbers as
// json.Number.
func ParseDocument(raw []byte) (any, error) {
	tree, err := decodeTree(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedConfiguration, err)
	}
	return tree, nil
}

var requiredSections = []string{"timeRange", "rating", "scoring", "weights", "qualification"}

// Parse decodes and validates a stored configuration document. Every section
// must be present and uma must have exactly four entries.
func Parse(raw []byte) (Configuration, error) {
	tree, err := ParseDocument(raw)
	if err != nil {
		return Configuration{}, err
	}
	doc, ok := tree.(map[string]any)
	if !ok {
		return Configuration{}, malformed("document must be a JSON object")
	}
	for _, s := range requiredSections {
		if _, ok := doc[s].(map[string]any); !ok {
			return Configuration{}, malformed("missing section %q", s)
		}
	}
	scoring := doc["scoring"].(map[string]any)
	if uma, ok := scoring["uma"].([]any); !ok || len(uma) != len(Configuration{}.Scoring.Uma) {
		return Configuration{}, malformed("scoring.uma must have exactly 4 entries")
	}

	var cfg Configuration
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Configuration{}, malformed("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}
