package dataset

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = `deadbeef
id,name,latitude,longitude,description
4f1d3c9a-2b7e-4c55-8a1f-0e6d2b9c7a31,Challen,40.1125,-88.2269,"Grainger, third floor"
7a2e9b14-6c3d-4f8a-b1e2-5d9c0a7f3e62,Geoffrey,-0.5,179.999,Morrow Plots
`

func TestLoadParsesRowsPositionally(t *testing.T) {
	places, err := Load(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if len(places) != 2 {
		t.Fatalf("expected 2 places, got %d", len(places))
	}

	first := places[0]
	if first.ID != "4f1d3c9a-2b7e-4c55-8a1f-0e6d2b9c7a31" || first.Name != "Challen" {
		t.Fatalf("unexpected first place: %+v", first)
	}
	if first.Latitude != 40.1125 || first.Longitude != -88.2269 {
		t.Fatalf("unexpected coordinates: %v, %v", first.Latitude, first.Longitude)
	}
	if first.Description != "Grainger, third floor" {
		t.Fatalf("unexpected description: %q", first.Description)
	}
	if places[1].Latitude != -0.5 || places[1].Longitude != 179.999 {
		t.Fatalf("unexpected coordinates: %v, %v", places[1].Latitude, places[1].Longitude)
	}
}

func TestLoadSkipsOnlyPreamble(t *testing.T) {
	places, err := Load(strings.NewReader("checksum\nheader\n"))
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if len(places) != 0 {
		t.Fatalf("expected no places, got %d", len(places))
	}
}

func TestLoadRejectsMalformedRows(t *testing.T) {
	cases := map[string]string{
		"missing preamble": "only-one-line\n",
		"four fields":      "sum\nheader\nid,name,1,2\n",
		"six fields":       "sum\nheader\nid,name,1,2,desc,extra\n",
		"bad latitude":     "sum\nheader\nid,name,north,2,desc\n",
		"bad longitude":    "sum\nheader\nid,name,1,west,desc\n",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(input)); !errors.Is(err, ErrMalformedRow) {
				t.Fatalf("expected ErrMalformedRow, got %v", err)
			}
		})
	}
}

func TestLoadReportsLine(t *testing.T) {
	_, err := Load(strings.NewReader("sum\nheader\na,b,1,2,c\na,b,x,2,c\n"))
	if err == nil || !strings.Contains(err.Error(), "line 4") {
		t.Fatalf("expected error naming line 4, got %v", err)
	}
}

func TestBundledDatasetLoads(t *testing.T) {
	places, err := LoadFrom(context.Background(), Embedded())
	if err != nil {
		t.Fatalf("LoadFrom err: %v", err)
	}
	if len(places) != 10 {
		t.Fatalf("expected 10 bundled places, got %d", len(places))
	}

	seen := make(map[string]bool, len(places))
	for _, p := range places {
		if err := p.Validate(); err != nil {
			t.Fatalf("bundled place %s invalid: %v", p.ID, err)
		}
		if seen[p.ID] {
			t.Fatalf("duplicate bundled id %s", p.ID)
		}
		seen[p.ID] = true
	}

	if places[0].Description != "Grainger Library's quiet third floor, best for late studying" {
		t.Fatalf("unexpected quoted description: %q", places[0].Description)
	}
}

func TestBundledDatasetChecksum(t *testing.T) {
	if err := Verify(bytes.NewReader(bundled)); err != nil {
		t.Fatalf("bundled dataset failed verification: %v", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	tampered := append([]byte(nil), bundled...)
	tampered[len(tampered)-2] = 'X'

	if err := Verify(bytes.NewReader(tampered)); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "places.csv")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("WriteFile err: %v", err)
	}

	places, err := LoadFrom(context.Background(), FileSource{Path: path})
	if err != nil {
		t.Fatalf("LoadFrom err: %v", err)
	}
	if len(places) != 2 {
		t.Fatalf("expected 2 places, got %d", len(places))
	}
}

func TestFileSourceMissing(t *testing.T) {
	_, err := LoadFrom(context.Background(), FileSource{Path: filepath.Join(t.TempDir(), "nope.csv")})
	if !errors.Is(err, ErrDatasetMissing) {
		t.Fatalf("expected ErrDatasetMissing, got %v", err)
	}
}
