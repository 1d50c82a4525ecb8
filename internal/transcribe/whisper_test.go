package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTranscribe_SendsMultipartAndParsesResult(t *testing.T) {
	var gotTask, gotModel, gotLanguage string
	var gotAudio []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotTask = r.FormValue("task")
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			gotAudio, _ = io.ReadAll(f)
			f.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"  hello world \n","language":"en"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "base", "translate", "de", time.Second)
	res, err := c.Transcribe(context.Background(), []byte("RIFFfakewav"))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "hello world" {
		t.Fatalf("got text %q", res.Text)
	}
	if res.Language != "en" {
		t.Fatalf("got language %q", res.Language)
	}
	if gotTask != "translate" || gotModel != "base" || gotLanguage != "de" {
		t.Fatalf("got task=%q model=%q language=%q", gotTask, gotModel, gotLanguage)
	}
	if string(gotAudio) != "RIFFfakewav" {
		t.Fatalf("audio not forwarded, got %q", gotAudio)
	}
}

func TestTranscribe_OmitsEmptyLanguageHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		if _, ok := r.MultipartForm.Value["language"]; ok {
			t.Errorf("language field should be absent when no hint is set")
		}
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "base", "transcribe", "", time.Second)
	if _, err := c.Transcribe(context.Background(), []byte("x")); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
}

func TestTranscribe_Failures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_non_2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500); _, _ = w.Write([]byte("oops")) }},
		{"bad_json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("not-json")) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			c := NewClient(srv.URL, "base", "transcribe", "", time.Second)
			_, err := c.Transcribe(context.Background(), []byte("x"))
			if err == nil {
				t.Fatalf("expected error; got nil")
			}
			var terr *Error
			if !errors.As(err, &terr) {
				t.Fatalf("expected *transcribe.Error, got %T", err)
			}
		})
	}
}

func TestTranscribe_EmptyBuffer(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", "base", "transcribe", "", time.Second)
	if _, err := c.Transcribe(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty buffer")
	}
}
