package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultDataDirXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/custom/data/logcache" {
		t.Fatalf("got %s", got)
	}
}

func TestDefaultDataDirNoHome(t *testing.T) {
	t.Setenv("HOME", "")
	if got := DefaultDataDir(); got != "./data" {
		t.Fatalf("expected ./data fallback, got %s", got)
	}
}

func TestDefaultDataDirShape(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	got := DefaultDataDir()
	if !filepath.IsAbs(got) && !strings.HasPrefix(got, "./") {
		t.Fatalf("not absolute: %s", got)
	}
	if base := strings.ToLower(filepath.Base(got)); base != "logcache" && base != ".logcache" && base != "data" {
		t.Fatalf("unexpected dir %s", got)
	}
	if got != DefaultDataDir() {
		t.Fatalf("not stable")
	}
}

func TestIsDir(t *testing.T) {
	tests := []struct {
		name string
		path string
		want bool
	}{
		{"directory", ".", true},
		{"missing", "/non/existent/path", false},
		{"file", os.Args[0], false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDir(tt.path); got != tt.want {
				t.Fatalf("isDir(%s)=%v", tt.path, got)
			}
		})
	}
}
