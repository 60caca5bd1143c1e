package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthAddr(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{":8080", "127.0.0.1:8080"},
		{"localhost:9000", "localhost:9000"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := healthAddr(tt.in); got != tt.want {
			t.Errorf("healthAddr(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestHealthCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"health", "--addr", strings.TrimPrefix(srv.URL, "http://")})
	if err := root.Execute(); err != nil {
		t.Fatalf("health: %v", err)
	}
	if strings.TrimSpace(out.String()) != "ok" {
		t.Errorf("output = %q; want ok", out.String())
	}
}
