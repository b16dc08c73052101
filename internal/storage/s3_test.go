package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
)

func newTestS3(t *testing.T, endpoint string) *S3Storage {
	t.Helper()
	storage, err := NewS3Storage(context.Background(), S3Config{
		Bucket:          "audiobooks",
		Region:          "eu-west-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	})
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}
	return storage
}

func TestNewS3Storage(t *testing.T) {
	storage := newTestS3(t, "http://localhost:4566/")

	if storage.bucket != "audiobooks" {
		t.Errorf("bucket = %v, want audiobooks", storage.bucket)
	}
	if storage.endpoint != "http://localhost:4566" {
		t.Errorf("endpoint = %v, want trailing slash trimmed", storage.endpoint)
	}
	if storage.LocalStorage == nil {
		t.Error("expected embedded LocalStorage")
	}
}

func TestS3Storage_ObjectURL(t *testing.T) {
	aws := &S3Storage{bucket: "b", region: "us-east-1"}
	if got := aws.objectURL("A/B/01 - x.m4a"); got != "https://b.s3.us-east-1.amazonaws.com/A/B/01 - x.m4a" {
		t.Errorf("objectURL() = %v", got)
	}

	custom := &S3Storage{bucket: "b", endpoint: "http://minio:9000"}
	if got := custom.objectURL("k"); got != "http://minio:9000/b/k" {
		t.Errorf("objectURL() = %v", got)
	}
}

// fakeS3 records PUT requests made against a path-style endpoint.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	fail    bool
}

func (f *fakeS3) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT method, got %s", r.Method)
		}
		if f.fail {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		f.mu.Lock()
		f.objects[r.URL.Path] = string(body)
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func TestS3Storage_UploadToS3_MockServer(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	storage := newTestS3(t, server.URL)
	url, err := storage.UploadToS3(context.Background(), "Jane_Doe/The_Book/metadata.json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("UploadToS3() error = %v", err)
	}

	if want := server.URL + "/audiobooks/Jane_Doe/The_Book/metadata.json"; url != want {
		t.Errorf("url = %v, want %v", url, want)
	}
	if got := fake.objects["/audiobooks/Jane_Doe/The_Book/metadata.json"]; got != `{}` {
		t.Errorf("uploaded body = %q", got)
	}
	if ct := fake.types["/audiobooks/Jane_Doe/The_Book/metadata.json"]; ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
}

func TestPublish(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	dir := t.TempDir()
	files := map[string]string{
		"metadata.json":        "{}",
		"01 - Intro.m4a":       "audio1",
		"02 - Chapter Two.m4a": "audio2",
		".aaxsplit.lock":       "",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	urls, err := Publish(context.Background(), newTestS3(t, server.URL), dir, "Jane_Doe/The_Book")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(urls) != 3 {
		t.Fatalf("expected 3 uploads, got %d: %v", len(urls), urls)
	}

	var keys []string
	for k := range fake.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := []string{
		"/audiobooks/Jane_Doe/The_Book/01 - Intro.m4a",
		"/audiobooks/Jane_Doe/The_Book/02 - Chapter Two.m4a",
		"/audiobooks/Jane_Doe/The_Book/metadata.json",
	}
	if strings.Join(keys, "|") != strings.Join(want, "|") {
		t.Errorf("uploaded keys = %v, want %v", keys, want)
	}
	if fake.objects["/audiobooks/Jane_Doe/The_Book/02 - Chapter Two.m4a"] != "audio2" {
		t.Error("unexpected body for chapter 2")
	}
}

func TestPublish_Errors(t *testing.T) {
	t.Run("local storage is not configured", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Publish(context.Background(), NewLocalStorage(), dir, "A/B")
		if !errors.Is(err, ErrS3NotConfigured) {
			t.Errorf("expected ErrS3NotConfigured, got %v", err)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := Publish(context.Background(), NewLocalStorage(), filepath.Join(t.TempDir(), "absent"), "A/B")
		if err == nil {
			t.Error("expected error for missing directory")
		}
	})

	t.Run("server rejects upload", func(t *testing.T) {
		fake := &fakeS3{objects: map[string]string{}, types: map[string]string{}, fail: true}
		server := httptest.NewServer(fake.handler(t))
		defer server.Close()

		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Publish(context.Background(), newTestS3(t, server.URL), dir, "A/B")
		if err == nil {
			t.Error("expected error from rejected upload")
		}
	})
}
