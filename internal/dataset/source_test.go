package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func newFakeS3(t *testing.T, key string, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/datasets/"+key {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("ETag", `"0123456789abcdef"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte(body))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestS3Source(t *testing.T, srv *httptest.Server, key string) *S3Source {
	t.Helper()
	src, err := NewS3Source(S3Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "test",
		SecretKey: "testsecret",
		Bucket:    "datasets",
		Key:       key,
	})
	if err != nil {
		t.Fatalf("NewS3Source err: %v", err)
	}
	return src
}

func TestS3SourceLoads(t *testing.T) {
	srv := newFakeS3(t, "places.csv", sample)
	src := newTestS3Source(t, srv, "places.csv")

	places, err := LoadFrom(context.Background(), src)
	if err != nil {
		t.Fatalf("LoadFrom err: %v", err)
	}
	if len(places) != 2 {
		t.Fatalf("expected 2 places, got %d", len(places))
	}
	if src.Name() != "s3://datasets/places.csv" {
		t.Fatalf("unexpected name %s", src.Name())
	}
}

func TestS3SourceMissingObject(t *testing.T) {
	srv := newFakeS3(t, "places.csv", sample)
	src := newTestS3Source(t, srv, "other.csv")

	if _, err := LoadFrom(context.Background(), src); err == nil {
		t.Fatal("expected error for missing object")
	}
}

func TestNewS3SourceRequiresLocation(t *testing.T) {
	if _, err := NewS3Source(S3Config{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected error without bucket and key")
	}
}
