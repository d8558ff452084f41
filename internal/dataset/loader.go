// Package dataset reads the bundled places table that seeds the catalog.
//
// The table is CSV. Line one holds a checksum of the rest of the file, line
// two is the column header, and every following row carries exactly five
// fields: id, name, latitude, longitude, description.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/zhouzirui/favorite-places/backend/internal/model/place"
)

const (
	// skippedLines covers the checksum line and the header.
	skippedLines = 2
	fieldsPerRow = 5
)

var (
	ErrDatasetMissing = errors.New("places dataset missing")
	ErrMalformedRow   = errors.New("malformed dataset row")
)

// Load parses a places table into catalog records in file order.
func Load(r io.Reader) ([]place.Place, error) {
	reader := csv.NewReader(r)
	// The checksum line has a single field, so row width is checked by hand.
	reader.FieldsPerRecord = -1

	for i := 0; i < skippedLines; i++ {
		if _, err := reader.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: expected checksum and header lines", ErrMalformedRow)
			}
			return nil, fmt.Errorf("read dataset preamble: %w", err)
		}
	}

	places := make([]place.Place, 0, 64)
	for {
		parts, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset: %w", err)
		}

		line, _ := reader.FieldPos(0)
		p, err := parseRow(parts)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		places = append(places, p)
	}
	return places, nil
}

func parseRow(parts []string) (place.Place, error) {
	if len(parts) != fieldsPerRow {
		return place.Place{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedRow, fieldsPerRow, len(parts))
	}

	latitude, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return place.Place{}, fmt.Errorf("%w: latitude: %v", ErrMalformedRow, err)
	}
	longitude, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return place.Place{}, fmt.Errorf("%w: longitude: %v", ErrMalformedRow, err)
	}

	return place.Place{
		ID:          parts[0],
		Name:        parts[1],
		Latitude:    latitude,
		Longitude:   longitude,
		Description: parts[4],
	}, nil
}

// LoadFrom opens src and parses it.
func LoadFrom(ctx context.Context, src Source) ([]place.Place, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	places, err := Load(rc)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src.Name(), err)
	}
	return places, nil
}
