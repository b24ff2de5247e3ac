// Package token encodes a student's identity into the JSON payload embedded
// in their QR badge and decodes scanned payloads back.
//
// The payload carries no signature and no expiry: whoever presents a payload
// with a valid internal id is treated as presenting that student's identity.
// Only the id field is authoritative; student_id and name are display hints.
package token

import (
	"encoding/json"
	"errors"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"qrattend/internal/model"
)

var (
	// ErrMalformedToken means the payload is not a JSON object.
	ErrMalformedToken = errors.New("token: malformed payload")
	// ErrMissingField means the mandatory id field is absent.
	ErrMissingField = errors.New("token: missing id field")
)

// payload is the wire shape of a student token.
type payload struct {
	ID        int64  `json:"id"`
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
}

// Decoded is the trusted result of decoding a scanned payload.
type Decoded struct {
	ID        int64
	StudentID string
	Name      string
}

// Encode produces the token payload for a student. It is regenerated every
// time the student's identity fields change, so the issuance timestamp
// reflects the last profile mutation.
func Encode(s model.Student) (string, error) {
	p := payload{
		ID:        s.ID,
		StudentID: s.StudentID,
		Name:      s.FullName(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a scanned payload. It returns ErrMalformedToken when the
// payload is not a JSON object and ErrMissingField when id is absent.
func Decode(raw string) (Decoded, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Decoded{}, ErrMalformedToken
	}
	// JSON null unmarshals into a nil map without error; it is still not an
	// object.
	if fields == nil {
		return Decoded{}, ErrMalformedToken
	}
	idRaw, ok := fields["id"]
	if !ok {
		return Decoded{}, ErrMissingField
	}
	var d Decoded
	if err := json.Unmarshal(idRaw, &d.ID); err != nil {
		return Decoded{}, ErrMalformedToken
	}
	if nameRaw, ok := fields["name"]; ok {
		_ = json.Unmarshal(nameRaw, &d.Name)
	}
	if sidRaw, ok := fields["student_id"]; ok {
		_ = json.Unmarshal(sidRaw, &d.StudentID)
	}
	return d, nil
}

// PNG renders a payload as a QR code image, size pixels square.
func PNG(raw string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(raw, qrcode.Medium, size)
}
