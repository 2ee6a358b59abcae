package parser

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/BerylCAtieno/travel-extract/internal/category"
	"github.com/BerylCAtieno/travel-extract/internal/models"
)

// Normalize maps a parsed reply onto the field schema of def. Every schema
// field is present in the result; absent keys, JSON null, blank strings
// and the literal "null" become nil. Numbers and booleans are kept as
// their string form.
//
// With a nil def the category named by the reply's documentType is used.
// If that is not a known category, every reply key is kept in sorted order
// and documentType is "unknown".
func Normalize(obj map[string]any, def *category.Definition) models.ExtractionResult {
	if def == nil {
		if name, ok := obj[category.DocumentTypeKey].(string); ok {
			if d, found := category.Lookup(category.Category(strings.TrimSpace(name))); found {
				def = &d
			}
		}
	}

	if def == nil {
		return normalizeAll(obj)
	}

	fields := def.Fields()
	res := models.ExtractionResult{
		DocumentType: string(def.Category),
		Fields:       make(map[string]*string, len(fields)),
		Order:        fields,
	}

	loose := make(map[string]any, len(obj))
	for k, v := range obj {
		loose[looseKey(k)] = v
	}
	for _, f := range fields {
		v, ok := obj[f]
		if !ok {
			v = loose[looseKey(f)]
		}
		res.Fields[f] = stringValue(v)
	}
	return res
}

func normalizeAll(obj map[string]any) models.ExtractionResult {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		if k != category.DocumentTypeKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	res := models.ExtractionResult{
		DocumentType: string(category.Unknown),
		Fields:       make(map[string]*string, len(keys)),
		Order:        keys,
	}
	for _, k := range keys {
		res.Fields[k] = stringValue(obj[k])
	}
	return res
}

// looseKey folds "Flight number", "flight_number" and "flightNumber" to
// the same key.
func looseKey(k string) string {
	var sb strings.Builder
	for _, r := range k {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
		}
	}
	return sb.String()
}

func stringValue(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") {
			return nil
		}
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		s = string(b)
	}
	return &s
}
