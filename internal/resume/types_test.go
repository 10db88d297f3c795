package resume

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateUnmarshalPlainDate(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2023-04-15"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Time.Year() != 2023 || d.Time.Month() != time.April || d.Time.Day() != 15 {
		t.Fatalf("unexpected date: %v", d.Time)
	}
}

func TestDateUnmarshalRFC3339(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2023-04-15T10:30:00Z"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Time.Year() != 2023 || d.Time.Month() != time.April || d.Time.Day() != 15 {
		t.Fatalf("unexpected date: %v", d.Time)
	}
}

func TestDateUnmarshalNull(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`null`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.IsZero() {
		t.Fatalf("expected zero date, got %v", d.Time)
	}
}

func TestDateMarshal(t *testing.T) {
	d := NewDate(2024, time.January, 2)
	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"2024-01-02"` {
		t.Fatalf("unexpected output: %s", out)
	}

	var zero Date
	out, err = json.Marshal(zero)
	if err != nil {
		t.Fatalf("marshal zero: %v", err)
	}
	if string(out) != "null" {
		t.Fatalf("expected null for zero date, got %s", out)
	}
}

func TestWorkExperienceIsBlank(t *testing.T) {
	if !(WorkExperience{}).IsBlank() {
		t.Fatal("empty entry should be blank")
	}

	start := NewDate(2020, time.March, 1)
	cases := []WorkExperience{
		{Position: "Engineer"},
		{Company: "Acme"},
		{StartDate: &start},
		{Description: "did things"},
	}
	for i, entry := range cases {
		if entry.IsBlank() {
			t.Fatalf("case %d: entry with a set field reported blank", i)
		}
	}

	var zero Date
	if !(WorkExperience{StartDate: &zero, EndDate: &zero}).IsBlank() {
		t.Fatal("entry with only zero dates should be blank")
	}
}

func TestVisibleWorkExperiencesPreservesOrder(t *testing.T) {
	entries := []WorkExperience{
		{Position: "First"},
		{},
		{Position: "Second"},
		{},
		{Position: "Third"},
	}
	visible := VisibleWorkExperiences(entries)
	if len(visible) != 3 {
		t.Fatalf("expected 3 visible entries, got %d", len(visible))
	}
	for i, want := range []string{"First", "Second", "Third"} {
		if visible[i].Position != want {
			t.Fatalf("position %d: want %q, got %q", i, want, visible[i].Position)
		}
	}
}

func TestVisibleEducations(t *testing.T) {
	entries := []Education{
		{},
		{Degree: "BSc", School: "MIT"},
	}
	visible := VisibleEducations(entries)
	if len(visible) != 1 || visible[0].Degree != "BSc" {
		t.Fatalf("unexpected visible entries: %+v", visible)
	}
}

func TestKnownBorderStyle(t *testing.T) {
	for _, s := range []string{BorderSquare, BorderCircle, BorderRounded} {
		if !KnownBorderStyle(s) {
			t.Fatalf("style %q should be known", s)
		}
	}
	if KnownBorderStyle("hexagon") {
		t.Fatal("unexpected style accepted")
	}
}

func TestSkillsCodecRoundTrip(t *testing.T) {
	raw, err := EncodeSkills([]string{"Go", "SQL", "Go"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeSkills(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 3 || out[0] != "Go" || out[1] != "SQL" || out[2] != "Go" {
		t.Fatalf("round trip lost data: %v", out)
	}
}

func TestSkillsCodecNil(t *testing.T) {
	raw, err := EncodeSkills(nil)
	if err != nil {
		t.Fatalf("encode nil: %v", err)
	}
	out, err := DecodeSkills(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty slice, got %#v", out)
	}

	out, err = DecodeSkills(nil)
	if err != nil {
		t.Fatalf("decode empty column: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty slice for empty column, got %#v", out)
	}
}

func TestWorkExperienceCodecKeepsBlankEntries(t *testing.T) {
	start := NewDate(2021, time.June, 1)
	entries := []WorkExperience{
		{Position: "Engineer", Company: "Acme", StartDate: &start},
		{},
	}
	raw, err := EncodeWorkExperiences(entries)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeWorkExperiences(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("blank entry dropped in storage: got %d entries", len(out))
	}
	if out[0].StartDate == nil || !out[0].StartDate.Time.Equal(start.Time) {
		t.Fatalf("start date mangled: %+v", out[0].StartDate)
	}
}
