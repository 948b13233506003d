package records

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

// BadgeData is the field set encoded into a basket badge QR code. Field order
// is part of the hash contract.
type BadgeData struct {
	EID      string `json:"eid"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Basket   string `json:"basket"`
	Assigned string `json:"assigned"`
	Hash     string `json:"hash,omitempty"`
}

// Canonical returns the JSON the hash is computed over: every field but the hash,
// in declaration order, without HTML escaping.
func (d BadgeData) Canonical() ([]byte, error) {
	d.Hash = ""
	return encodeJSON(d)
}

// ComputeHash returns the uppercase hex SHA-256 of the canonical JSON.
func (d BadgeData) ComputeHash() (string, error) {
	canonical, err := d.Canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return strings.ToUpper(hex.EncodeToString(sum[:])), nil
}

// Payload returns the JSON embedded in the QR code, hash included.
func (d BadgeData) Payload() (string, error) {
	if d.Hash == "" {
		hash, err := d.ComputeHash()
		if err != nil {
			return "", err
		}
		d.Hash = hash
	}
	raw, err := encodeJSON(d)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ParsePayload decodes a scanned QR payload.
func ParsePayload(raw []byte) (BadgeData, error) {
	var data BadgeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return BadgeData{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "badge payload is not valid JSON")
	}
	return data, nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode badge data")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
