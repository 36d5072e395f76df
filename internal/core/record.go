package core

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// InspectionRecord is one quality inspection event.
//
// Unknown wire fields are kept in Extra and written back unchanged, so a
// record read from the API can be sent back without losing data.
type InspectionRecord struct {
	ID               string
	InspectionID     string
	Year             int
	Month            string
	InspectionDate   time.Time
	ServicePerformed string
	InspectionType   string
	InspectorName    string
	InspectionStatus string

	Counts [NumFields]float64
	Extra  map[string]json.RawMessage
}

// Get returns the value of a numeric field.
func (r InspectionRecord) Get(f Field) float64 {
	if f < 0 || f >= NumFields {
		return 0
	}
	return r.Counts[f]
}

// Set assigns a numeric field.
func (r *InspectionRecord) Set(f Field, v float64) {
	if f < 0 || f >= NumFields {
		return
	}
	r.Counts[f] = v
}

// MonthKey returns the month, or SelfSet when absent.
func (r InspectionRecord) MonthKey() string { return orSelfSet(r.Month) }

// InspectorKey returns the inspector name, or SelfSet when absent.
func (r InspectionRecord) InspectorKey() string { return orSelfSet(r.InspectorName) }

// StatusKey returns the inspection status, or SelfSet when absent.
func (r InspectionRecord) StatusKey() string { return orSelfSet(r.InspectionStatus) }

func orSelfSet(s string) string {
	if strings.TrimSpace(s) == "" {
		return SelfSet
	}
	return s
}

// Normalize fills the defaults applied to every record on receipt: absent
// categorical fields become SelfSet and a missing year is taken from the
// inspection date.
func (r InspectionRecord) Normalize() InspectionRecord {
	if r.Year == 0 && !r.InspectionDate.IsZero() {
		r.Year = r.InspectionDate.Year()
	}
	r.Month = r.MonthKey()
	r.InspectorName = r.InspectorKey()
	r.InspectionStatus = r.StatusKey()
	return r
}

// ForWrite returns a copy without the server-managed identity fields.
func (r InspectionRecord) ForWrite() InspectionRecord {
	r.ID = ""
	if len(r.Extra) > 0 {
		extra := make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			if k == "__v" || k == KeyID {
				continue
			}
			extra[k] = v
		}
		r.Extra = extra
	}
	return r
}

// Value renders a column for display. Unknown columns render as "".
func (r InspectionRecord) Value(column string) string {
	if f, ok := FieldByName(column); ok {
		return formatNumber(r.Counts[f])
	}
	switch column {
	case KeyID:
		return r.ID
	case KeyInspectionID:
		return r.InspectionID
	case KeyYear:
		return strconv.Itoa(r.Year)
	case KeyMonth:
		return r.Month
	case KeyInspectionDate:
		if r.InspectionDate.IsZero() {
			return ""
		}
		return r.InspectionDate.Format("2006-01-02")
	case KeyServicePerformed:
		return r.ServicePerformed
	case KeyInspectionType:
		return r.InspectionType
	case KeyInspectorName:
		return r.InspectorName
	case KeyInspectionStatus:
		return r.InspectionStatus
	}
	return ""
}

// UnmarshalJSON decodes a record leniently: numeric fields that are missing or
// do not parse as numbers are 0, and unknown fields land in Extra.
func (r *InspectionRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = InspectionRecord{}
	for key, val := range raw {
		if f, ok := FieldByName(key); ok {
			r.Counts[f] = parseNumber(val)
			continue
		}
		switch key {
		case KeyID:
			r.ID = parseText(val)
		case KeyInspectionID:
			r.InspectionID = parseText(val)
		case KeyYear:
			r.Year = int(parseNumber(val))
		case KeyMonth:
			r.Month = parseText(val)
		case KeyInspectionDate:
			r.InspectionDate = parseDate(parseText(val))
		case KeyServicePerformed:
			r.ServicePerformed = parseText(val)
		case KeyInspectionType:
			r.InspectionType = parseText(val)
		case KeyInspectorName:
			r.InspectorName = parseText(val)
		case KeyInspectionStatus:
			r.InspectionStatus = parseText(val)
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]json.RawMessage)
			}
			r.Extra[key] = append(json.RawMessage(nil), val...)
		}
	}
	return nil
}

// MarshalJSON writes known fields in column order followed by Extra sorted by key.
func (r InspectionRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, val []byte) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	str := func(s string) []byte {
		b, _ := json.Marshal(s)
		return b
	}

	if r.ID != "" {
		write(KeyID, str(r.ID))
	}
	for _, col := range Columns {
		if f, ok := FieldByName(col); ok {
			write(col, []byte(formatNumber(r.Counts[f])))
			continue
		}
		switch col {
		case KeyYear:
			write(col, []byte(strconv.Itoa(r.Year)))
		case KeyInspectionDate:
			if !r.InspectionDate.IsZero() {
				write(col, str(r.InspectionDate.UTC().Format(time.RFC3339)))
			}
		default:
			write(col, str(r.Value(col)))
		}
	}

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !json.Valid(r.Extra[k]) {
			continue
		}
		write(k, r.Extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func parseNumber(val json.RawMessage) float64 {
	var v any
	if err := json.Unmarshal(val, &v); err != nil {
		return 0
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseText(val json.RawMessage) string {
	var v any
	if err := json.Unmarshal(val, &v); err != nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

func parseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
