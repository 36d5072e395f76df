package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestUnmarshalLenientNumbers(t *testing.T) {
	data := `{
		"_id": "abc123",
		"pass": 1,
		"fail": "0",
		"major": " 2 ",
		"minor": "abc",
		"critical": null,
		"hole": true,
		"flyYarn": "NaN",
		"inspectionId": 4411,
		"year": "2024",
		"month": "March",
		"inspectionDate": "2024-03-05T00:00:00.000Z"
	}`
	var r InspectionRecord
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	checks := []struct {
		f    Field
		want float64
	}{
		{FieldPass, 1},
		{FieldFail, 0},
		{FieldMajor, 2},
		{FieldMinor, 0},
		{FieldCritical, 0},
		{FieldHole, 0},
		{FieldFlyYarn, 0},
		{FieldStainMinor, 0},
	}
	for _, c := range checks {
		if got := r.Get(c.f); got != c.want {
			t.Fatalf("%s = %v, want %v", c.f, got, c.want)
		}
	}
	if r.ID != "abc123" || r.InspectionID != "4411" || r.Year != 2024 || r.Month != "March" {
		t.Fatalf("unexpected identity fields: %+v", r)
	}
	if want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC); !r.InspectionDate.Equal(want) {
		t.Fatalf("date = %v, want %v", r.InspectionDate, want)
	}
}

func TestUnknownFieldsPassThrough(t *testing.T) {
	in := `{"_id":"x1","__v":3,"createdAt":"2024-01-01T00:00:00Z","custom":{"a":[1,2]},"pass":1}`
	var r InspectionRecord
	if err := json.Unmarshal([]byte(in), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(r.Extra) != 3 {
		t.Fatalf("expected 3 extra fields, got %d", len(r.Extra))
	}

	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if back["__v"] != float64(3) {
		t.Fatalf("__v lost: %v", back["__v"])
	}
	if _, ok := back["custom"].(map[string]any); !ok {
		t.Fatalf("custom object lost: %s", out)
	}
	if back["_id"] != "x1" {
		t.Fatalf("_id lost: %s", out)
	}
}

func TestMarshalColumnOrder(t *testing.T) {
	r := InspectionRecord{Year: 2023, Month: "May"}
	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(out)
	if !strings.HasPrefix(s, `{"serialNo":0,"year":2023,"month":"May"`) {
		t.Fatalf("unexpected prefix: %s", s)
	}
	if strings.Contains(s, KeyInspectionDate) {
		t.Fatalf("zero date should be omitted: %s", s)
	}
	if strings.Contains(s, KeyID) {
		t.Fatalf("empty id should be omitted: %s", s)
	}
}

func TestForWriteDropsIdentity(t *testing.T) {
	r := InspectionRecord{
		ID: "x1",
		Extra: map[string]json.RawMessage{
			"__v":       json.RawMessage(`2`),
			"createdAt": json.RawMessage(`"2024-01-01"`),
		},
	}
	w := r.ForWrite()
	if w.ID != "" {
		t.Fatalf("id kept: %q", w.ID)
	}
	if _, ok := w.Extra["__v"]; ok {
		t.Fatalf("__v kept")
	}
	if _, ok := w.Extra["createdAt"]; !ok {
		t.Fatalf("createdAt dropped")
	}
	if _, ok := r.Extra["__v"]; !ok {
		t.Fatalf("original record mutated")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	r := InspectionRecord{InspectionDate: time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC)}.Normalize()
	if r.Year != 2022 {
		t.Fatalf("year = %d, want 2022", r.Year)
	}
	if r.Month != SelfSet || r.InspectorName != SelfSet || r.InspectionStatus != SelfSet {
		t.Fatalf("defaults not applied: %+v", r)
	}

	kept := InspectionRecord{Year: 2020, Month: "July", InspectorName: "Ali"}.Normalize()
	if kept.Year != 2020 || kept.Month != "July" || kept.InspectorName != "Ali" {
		t.Fatalf("existing values overwritten: %+v", kept)
	}
}

func TestFieldNames(t *testing.T) {
	for f := Field(0); f < NumFields; f++ {
		name := f.String()
		if name == "" {
			t.Fatalf("field %d has no name", f)
		}
		back, ok := FieldByName(name)
		if !ok || back != f {
			t.Fatalf("FieldByName(%q) = %v, %v", name, back, ok)
		}
	}
	if len(MajorDefectFields) != 17 || len(MinorDefectFields) != 5 {
		t.Fatalf("defect lists: %d major, %d minor", len(MajorDefectFields), len(MinorDefectFields))
	}
	if Field(-1).String() != "unknown" || NumFields.String() != "unknown" {
		t.Fatalf("out of range field should be unknown")
	}
}

func TestValueRendering(t *testing.T) {
	r := InspectionRecord{Year: 2024, InspectionDate: time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC)}
	r.Set(FieldPercentAllowed, 2.5)
	cases := map[string]string{
		"year":           "2024",
		"inspectionDate": "2024-01-09",
		"percentAllowed": "2.5",
		"hole":           "0",
		"nope":           "",
	}
	for col, want := range cases {
		if got := r.Value(col); got != want {
			t.Fatalf("Value(%q) = %q, want %q", col, got, want)
		}
	}
}
