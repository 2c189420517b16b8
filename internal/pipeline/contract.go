// Field-contract validation.
//
// A Contract declares, in order, the fields an endpoint accepts. Validation
// short-circuits on the first violated field; later fields are not checked.
// Kind checks also apply to optional fields when a non-empty value is present.
package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies how a field value is checked and coerced.
type Kind int

const (
	// KindString accepts any non-blank string (when required).
	KindString Kind = iota
	// KindEmail requires the value to contain an '@'.
	KindEmail
	// KindDate requires the value to parse into a calendar timestamp.
	KindDate
	// KindEnum requires the value to be one of Field.Allowed.
	KindEnum
)

// Field declares one entry of an endpoint's field contract.
type Field struct {
	Name     string
	Required bool
	Kind     Kind
	// Allowed lists the accepted values for KindEnum fields.
	Allowed []string
}

// Contract is an ordered list of field declarations.
type Contract []Field

// Payload holds the coerced values of a validated request body. String kinds
// are stored trimmed; KindDate fields are stored as time.Time in UTC.
type Payload map[string]any

// String returns the payload value for name as a string ("" when absent or
// not a string).
func (p Payload) String(name string) string {
	s, _ := p[name].(string)
	return s
}

// Time returns the payload value for name as a time.Time (zero when absent).
func (p Payload) Time(name string) time.Time {
	t, _ := p[name].(time.Time)
	return t
}

// dateLayouts lists the accepted date formats, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Validate checks body against the contract and returns the coerced payload,
// or a RejectedValidation outcome for the first violated field.
//
// Rules:
//   - a required field fails if absent, null, or blank/whitespace-only
//   - KindEmail fails if the value contains no '@'
//   - KindDate fails if no layout parses the value
//   - KindEnum fails if the value is not in the allowed set
func (ct Contract) Validate(body map[string]any) (Payload, *Outcome) {
	payload := make(Payload, len(ct))

	for _, f := range ct {
		raw, present := body[f.Name]
		if !present || raw == nil {
			if f.Required {
				out := rejectedValidation(f.Name, "missing required field")
				return nil, &out
			}
			continue
		}

		s, isStr := raw.(string)
		if !isStr {
			out := rejectedValidation(f.Name, "must be a string")
			return nil, &out
		}
		s = strings.TrimSpace(s)
		if s == "" {
			if f.Required {
				out := rejectedValidation(f.Name, "missing required field")
				return nil, &out
			}
			continue
		}

		switch f.Kind {
		case KindEmail:
			if !strings.Contains(s, "@") {
				out := rejectedValidation(f.Name, "invalid email address")
				return nil, &out
			}
			payload[f.Name] = s
		case KindDate:
			t, err := parseDate(s)
			if err != nil {
				out := rejectedValidation(f.Name, "invalid date format")
				return nil, &out
			}
			payload[f.Name] = t.UTC()
		case KindEnum:
			if !contains(f.Allowed, s) {
				out := rejectedValidation(f.Name, fmt.Sprintf("must be one of: %s", strings.Join(f.Allowed, ", ")))
				return nil, &out
			}
			payload[f.Name] = s
		default:
			payload[f.Name] = s
		}
	}

	return payload, nil
}

func parseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
