package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/Mharish0341/Trustguard/pkg/errors"
)

func TestGetCachesByURL(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	f := New(time.Second, 8, nil)
	for i := 0; i < 3; i++ {
		data, err := f.Get(context.Background(), srv.URL+"/a.jpg")
		if err != nil {
			t.Fatalf("Get #%d: %v", i, err)
		}
		if string(data) != "image-bytes" {
			t.Fatalf("Get #%d = %q, want served bytes", i, data)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hits = %d, want 1 (later reads from cache)", n)
	}
}

func TestGetDistinctURLsNotShared(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	f := New(time.Second, 8, nil)
	a, err := f.Get(context.Background(), srv.URL+"/a")
	if err != nil {
		t.Fatalf("Get a: %v", err)
	}
	b, err := f.Get(context.Background(), srv.URL+"/b")
	if err != nil {
		t.Fatalf("Get b: %v", err)
	}
	if string(a) == string(b) {
		t.Errorf("distinct urls returned identical bodies %q", a)
	}
}

func TestGetNon200IsDownloadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(time.Second, 8, nil)
	_, err := f.Get(context.Background(), srv.URL+"/missing")
	if !errors.Is(err, apperrors.ErrDownload) {
		t.Fatalf("err = %v, want ErrDownload", err)
	}
}

func TestGetUnreachableHost(t *testing.T) {
	f := New(200*time.Millisecond, 8, nil)
	_, err := f.Get(context.Background(), "http://127.0.0.1:1/nothing")
	if !errors.Is(err, apperrors.ErrDownload) {
		t.Fatalf("err = %v, want ErrDownload", err)
	}
}

func TestGetFailedDownloadNotCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(time.Second, 8, nil)
	if _, err := f.Get(context.Background(), srv.URL+"/x"); err == nil {
		t.Fatal("first Get succeeded, want error")
	}
	data, err := f.Get(context.Background(), srv.URL+"/x")
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("second Get = %q, want a fresh download", data)
	}
}
