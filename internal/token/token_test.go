package token

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"qrattend/internal/model"
)

func TestEncode_CarriesIdentityFields(t *testing.T) {
	s := model.Student{ID: 7, StudentID: "S-1001", FirstName: "Amy", LastName: "Pham"}
	raw, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got["id"].(float64) != 7 {
		t.Errorf("id = %v, want 7", got["id"])
	}
	if got["student_id"] != "S-1001" {
		t.Errorf("student_id = %v, want S-1001", got["student_id"])
	}
	if got["name"] != "Amy Pham" {
		t.Errorf("name = %v, want Amy Pham", got["name"])
	}
	if _, err := time.Parse(time.RFC3339, got["timestamp"].(string)); err != nil {
		t.Errorf("timestamp not RFC3339: %v", got["timestamp"])
	}
}

func TestDecode_ValidPayload(t *testing.T) {
	d, err := Decode(`{"id": 7, "name": "Amy"}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.ID != 7 {
		t.Errorf("id = %d, want 7", d.ID)
	}
	if d.Name != "Amy" {
		t.Errorf("name = %q, want Amy", d.Name)
	}
}

func TestDecode_MissingID(t *testing.T) {
	_, err := Decode(`{"name": "Amy"}`)
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("err = %v, want ErrMissingField", err)
	}
}

func TestDecode_NotAnObject(t *testing.T) {
	for _, raw := range []string{`not json`, `[1,2,3]`, `42`, `"id"`, `null`, ``} {
		if _, err := Decode(raw); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("Decode(%q) err = %v, want ErrMalformedToken", raw, err)
		}
	}
}

func TestDecode_NonNumericID(t *testing.T) {
	if _, err := Decode(`{"id": "seven"}`); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("err = %v, want ErrMalformedToken", err)
	}
}

func TestDecode_IgnoresExtraFields(t *testing.T) {
	d, err := Decode(`{"id": 3, "student_id": "S-3", "timestamp": "2026-01-01T00:00:00Z", "extra": true}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.ID != 3 || d.StudentID != "S-3" {
		t.Errorf("got %+v", d)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	s := model.Student{ID: 42, StudentID: "S-42", FirstName: "Binh", LastName: "Tran"}
	raw, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	d, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.ID != 42 || d.StudentID != "S-42" || d.Name != "Binh Tran" {
		t.Errorf("round trip got %+v", d)
	}
}

func TestPNG_ProducesImage(t *testing.T) {
	b, err := PNG(`{"id":1}`, 128)
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}
	if len(b) < 8 || string(b[1:4]) != "PNG" {
		t.Errorf("output does not look like a PNG (%d bytes)", len(b))
	}
}
