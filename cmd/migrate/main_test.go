package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestParseOptions(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		env     map[string]string
		want    options
		wantErr string
	}{
		{
			name: "defaults with env dsn",
			env:  map[string]string{envPostgresDSN: " postgres://localhost/bs "},
			want: options{direction: "up", dsn: "postgres://localhost/bs"},
		},
		{
			name: "flag dsn wins",
			args: []string{"-direction=DOWN", "-steps=2", "-dsn=postgres://flag"},
			env:  map[string]string{envPostgresDSN: "postgres://env"},
			want: options{direction: "down", steps: 2, dsn: "postgres://flag"},
		},
		{name: "missing dsn", args: []string{"-direction=status"}, wantErr: "is required"},
		{name: "bad direction", args: []string{"-direction=sideways", "-dsn=x"}, wantErr: "unsupported direction"},
		{name: "unknown flag", args: []string{"-bogus"}, wantErr: "flag provided but not defined"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseOptions(tc.args, env(tc.env))
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("parseOptions = %+v, want %+v", got, tc.want)
			}
		})
	}

	if _, err := parseOptions(nil, env(nil)); !errors.Is(err, errDSNRequired) {
		t.Fatalf("expected errDSNRequired, got %v", err)
	}
}

func TestRun_UpStatusDown(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("BLACKSTORE_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("set BLACKSTORE_TEST_POSTGRES_DSN to run migrate CLI test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, direction := range []string{"up", "status", "down", "up"} {
		var out bytes.Buffer
		if err := run(ctx, options{direction: direction, dsn: dsn}, &out); err != nil {
			t.Fatalf("%s: %v", direction, err)
		}
		if !strings.HasPrefix(out.String(), direction+" ok:") {
			t.Fatalf("%s output = %q", direction, out.String())
		}
	}
}
