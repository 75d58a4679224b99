package urlutil

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"pgregory.net/rapid"
)

func TestRequestScheme(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		forwarded string
		tls       bool
		want      string
	}{
		{name: "plain", want: "http"},
		{name: "tls", tls: true, want: "https"},
		{name: "forwarded https", forwarded: "https", want: "https"},
		{name: "forwarded chain uses first hop", forwarded: "HTTPS, http", want: "https"},
		{name: "forwarded http beats tls", forwarded: "http", tls: true, want: "http"},
		{name: "invalid forwarded falls back", forwarded: "gopher", tls: true, want: "https"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/notes", nil)
			if tc.forwarded != "" {
				r.Header.Set("X-Forwarded-Proto", tc.forwarded)
			}
			if tc.tls {
				r.TLS = &tls.ConnectionState{}
			}
			if got := RequestScheme(r); got != tc.want {
				t.Fatalf("RequestScheme = %q, want %q", got, tc.want)
			}
		})
	}
}

func testIsSecureRequest_OnlyHTTPS(t *rapid.T) {
	proto := rapid.StringMatching(`[a-zA-Z]{0,8}`).Draw(t, "proto")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-Proto", proto)
	if IsSecureRequest(r) != (RequestScheme(r) == "https") {
		t.Fatalf("IsSecureRequest disagrees with scheme for %q", proto)
	}
	if IsSecureRequest(r) && !(len(proto) == 5 && (proto[0] == 'h' || proto[0] == 'H')) {
		t.Fatalf("proto %q treated as https", proto)
	}
}

func TestIsSecureRequest_OnlyHTTPS(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testIsSecureRequest_OnlyHTTPS)
}

func FuzzIsSecureRequest_OnlyHTTPS(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testIsSecureRequest_OnlyHTTPS))
}

func TestIsSecureRequest_Nil(t *testing.T) {
	if IsSecureRequest(nil) {
		t.Fatal("nil request reported secure")
	}
}
