package place

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Place is a named point of interest served by the catalog.
type Place struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description"`
}

var (
	ErrInvalidPlace = errors.New("invalid place")

	ErrMalformedBody  = fmt.Errorf("%w: malformed body", ErrInvalidPlace)
	ErrMissingField   = fmt.Errorf("%w: missing required field", ErrInvalidPlace)
	ErrInvalidID      = fmt.Errorf("%w: id must be a UUID", ErrInvalidPlace)
	ErrEmptyField     = fmt.Errorf("%w: name and description must not be empty", ErrInvalidPlace)
	ErrLatitudeRange  = fmt.Errorf("%w: latitude must be within [-90, 90]", ErrInvalidPlace)
	ErrLongitudeRange = fmt.Errorf("%w: longitude must be within [-180, 180]", ErrInvalidPlace)
)

// canonicalUUIDLen is the length of the hyphenated 8-4-4-4-12 form.
const canonicalUUIDLen = 36

// Validate checks the rules a client-submitted place must satisfy before it
// may enter the catalog.
func (p Place) Validate() error {
	if len(p.ID) != canonicalUUIDLen {
		return ErrInvalidID
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	if p.Name == "" || p.Description == "" {
		return ErrEmptyField
	}
	// NaN fails both comparisons.
	if !(p.Latitude >= -90 && p.Latitude <= 90) {
		return ErrLatitudeRange
	}
	if !(p.Longitude >= -180 && p.Longitude <= 180) {
		return ErrLongitudeRange
	}
	return nil
}

// Decode reads a single JSON place object and validates it. Keys are matched
// exactly; unknown properties, including mis-cased variants of the required
// ones, are ignored.
func Decode(r io.Reader) (Place, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&fields); err != nil {
		return Place{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	var p Place
	targets := []struct {
		key string
		dst interface{}
	}{
		{"id", &p.ID},
		{"name", &p.Name},
		{"latitude", &p.Latitude},
		{"longitude", &p.Longitude},
		{"description", &p.Description},
	}
	for _, target := range targets {
		raw, ok := fields[target.key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return Place{}, fmt.Errorf("%w: %s", ErrMissingField, target.key)
		}
		if err := json.Unmarshal(raw, target.dst); err != nil {
			return Place{}, fmt.Errorf("%w: %s: %v", ErrMalformedBody, target.key, err)
		}
	}

	if err := p.Validate(); err != nil {
		return Place{}, err
	}
	return p, nil
}
