package sample

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ReasonUnknown replaces an empty failure reason on an invalid sample.
const ReasonUnknown = "unknown"

// MaxPayloadBytes bounds a single ingress body.
const MaxPayloadBytes = 64 << 10

// ErrMalformed is returned for payloads that are not a sample object.
var ErrMalformed = errors.New("malformed sample payload")

// TileSample is one position report from the browser sender.
// Coordinates are meaningless when Valid is false.
type TileSample struct {
	Valid    bool   `json:"ok"`
	Reason   string `json:"reason,omitempty"`
	TileX    int    `json:"tileX"`
	TileY    int    `json:"tileY"`
	PixelX   int    `json:"pxX"`
	PixelY   int    `json:"pyY"`
	TileSize int    `json:"tileSize"`
	CellX    int    `json:"cellX"`
	CellY    int    `json:"cellY"`
}

// Normalize fills in a reason for invalid samples that arrived without one.
func (s TileSample) Normalize() TileSample {
	if !s.Valid && s.Reason == "" {
		s.Reason = ReasonUnknown
	}
	return s
}

// Decode reads a single JSON sample object from r.
// Field names are matched case-insensitively; anything that is not a JSON
// object, or does not fit the field types, is rejected with ErrMalformed.
func Decode(r io.Reader) (TileSample, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxPayloadBytes+1))
	if err != nil {
		return TileSample{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(body) > MaxPayloadBytes {
		return TileSample{}, fmt.Errorf("%w: payload exceeds %d bytes", ErrMalformed, MaxPayloadBytes)
	}
	return DecodeBytes(body)
}

// DecodeBytes is Decode over an in-memory body.
func DecodeBytes(body []byte) (TileSample, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return TileSample{}, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}
	var s TileSample
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return TileSample{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return s.Normalize(), nil
}
