package resume

import (
	"encoding/json"
	"testing"
)

func TestOptionalStringAbsent(t *testing.T) {
	var payload struct {
		Photo OptionalString `json:"photo"`
	}
	if err := json.Unmarshal([]byte(`{}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Photo.Present {
		t.Fatal("absent field reported present")
	}
}

func TestOptionalStringNull(t *testing.T) {
	var payload struct {
		Photo OptionalString `json:"photo"`
	}
	if err := json.Unmarshal([]byte(`{"photo": null}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !payload.Photo.Present || payload.Photo.Valid {
		t.Fatalf("null field: Present=%v Valid=%v", payload.Photo.Present, payload.Photo.Valid)
	}
}

func TestOptionalStringValue(t *testing.T) {
	var payload struct {
		Photo OptionalString `json:"photo"`
	}
	if err := json.Unmarshal([]byte(`{"photo": "user-photos/1/a.png"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !payload.Photo.Present || !payload.Photo.Valid || payload.Photo.Value != "user-photos/1/a.png" {
		t.Fatalf("unexpected state: %+v", payload.Photo)
	}
}
