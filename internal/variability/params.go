package variability

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"go-instance-catalog/pkg/utils"
)

// Bandpasses are the passband codes, in catalog order.
var Bandpasses = []string{"u", "g", "r", "i", "z", "y"}

// Offsets maps a bandpass code to a magnitude offset.
type Offsets map[string]float64

// Params is a decoded variability parameter string:
//
//	{"m": "applyRRly", "p": {"filename": "rrly_lc/RRab/98874_per.txt", "tStartMjd": 48000.0}}
//
// The long keys "varMethodName" and "pars" are accepted as well.
type Params struct {
	Method string
	Pars   map[string]interface{}
}

// ParseParams decodes a parameter string. ok is false when the object has
// no variability (empty, null or "None" strings, or method "None").
func ParseParams(raw string) (p Params, ok bool, err error) {
	s := strings.TrimSpace(raw)
	switch s {
	case "", "None", "null", "NULL":
		return Params{}, false, nil
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return Params{}, false, &VariabilityParseError{Raw: raw, Err: err}
	}

	methodKey, parsKey := "m", "p"
	if _, long := doc["varMethodName"]; long {
		methodKey = "varMethodName"
	}
	if _, long := doc["pars"]; long {
		parsKey = "pars"
	}

	method, isString := doc[methodKey].(string)
	if !isString || method == "" {
		return Params{}, false, &VariabilityParseError{Raw: raw, Err: fmt.Errorf("missing method name")}
	}
	if method == "None" {
		return Params{}, false, nil
	}

	pars := map[string]interface{}{}
	if v, present := doc[parsKey]; present && v != nil {
		m, isMap := v.(map[string]interface{})
		if !isMap {
			return Params{}, false, &VariabilityParseError{Raw: raw, Err: fmt.Errorf("parameters are %T, not an object", v)}
		}
		pars = m
	}
	return Params{Method: method, Pars: pars}, true, nil
}

// Has reports whether the parameter is present and not null
func (p Params) Has(key string) bool {
	v, ok := p.Pars[key]
	return ok && v != nil
}

// Float returns a numeric parameter. Booleans read as 0 or 1.
func (p Params) Float(key string) (float64, error) {
	v, ok := p.Pars[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%s: missing parameter %q", p.Method, key)
	}
	if b, isBool := v.(bool); isBool {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	f, ok := utils.AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("%s: parameter %q is not numeric: %v", p.Method, key, v)
	}
	return f, nil
}

// String returns a string parameter
func (p Params) String(key string) (string, error) {
	v, ok := p.Pars[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%s: missing parameter %q", p.Method, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: parameter %q is not a string: %v", p.Method, key, v)
	}
	return s, nil
}
