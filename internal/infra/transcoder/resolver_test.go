package transcoder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(DefaultDownloadTemplate, false, nil, "")

	tests := []struct {
		name    string
		link    string
		want    string
		wantErr bool
	}{
		{name: "landing link", link: "https://nyaa.si/view/1893465", want: "https://nyaa.si/download/1893465.torrent"},
		{name: "landing link with fragment", link: "https://nyaa.si/view/77#comments", want: "https://nyaa.si/download/77.torrent"},
		{name: "direct torrent", link: "https://nyaa.si/download/5.torrent", want: "https://nyaa.si/download/5.torrent"},
		{name: "magnet", link: "magnet:?xt=urn:btih:abc", want: "magnet:?xt=urn:btih:abc"},
		{name: "other page without scraping", link: "https://example.com/page", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tt.link)
			if tt.wantErr {
				if !errors.Is(err, ErrUnresolvableLink) {
					t.Fatalf("err = %v, want ErrUnresolvableLink", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.link, got, tt.want)
			}
		})
	}
}

func TestResolver_ScrapesLandingPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/release/abc":
			_, _ = fmt.Fprint(w, `<html><body><a href="/about">About</a><a href="/files/abc.torrent">Download</a></body></html>`)
		case "/release/magnet":
			_, _ = fmt.Fprint(w, `<html><body><a href="magnet:?xt=urn:btih:def">Magnet</a></body></html>`)
		case "/release/none":
			_, _ = fmt.Fprint(w, `<html><body>nothing here</body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewResolver(DefaultDownloadTemplate, true, srv.Client(), "test-agent")

	got, err := r.Resolve(context.Background(), srv.URL+"/release/abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := srv.URL + "/files/abc.torrent"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got, err = r.Resolve(context.Background(), srv.URL+"/release/magnet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "magnet:?xt=urn:btih:def" {
		t.Errorf("got %q, want magnet link", got)
	}

	for _, path := range []string{"/release/none", "/missing"} {
		if _, err := r.Resolve(context.Background(), srv.URL+path); !errors.Is(err, ErrUnresolvableLink) {
			t.Errorf("%s: err = %v, want ErrUnresolvableLink", path, err)
		}
	}
}
