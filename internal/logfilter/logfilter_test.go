package logfilter

import (
	"testing"

	"github.com/rzbill/logcache/internal/logstore"
)

func TestMatch(t *testing.T) {
	recs := []logstore.Record{
		logstore.NewRecord("2024-01-01T00:00:00", "boot ok"),
		logstore.NewRecord("2024-01-01T00:00:05", "disk error"),
		logstore.NewRecord("2024-01-02T00:00:00", `{"level":"warn","code":7}`),
	}
	tests := []struct {
		expr string
		want []bool
	}{
		{"", []bool{true, true, true}},
		{`text.contains("error")`, []bool{false, true, false}},
		{`timestamp >= "2024-01-01T00:00:05"`, []bool{false, true, true}},
		{`index % 2 == 0`, []bool{true, false, true}},
		{`json != null && json.level == "warn"`, []bool{false, false, true}},
	}
	for _, tt := range tests {
		f, err := Compile(tt.expr)
		if err != nil {
			t.Fatalf("compile %q: %v", tt.expr, err)
		}
		for i, r := range recs {
			if got := f.Match(i, r); got != tt.want[i] {
				t.Fatalf("%q on record %d: got %v", tt.expr, i, got)
			}
		}
	}
}

func TestCompileErrors(t *testing.T) {
	for _, expr := range []string{"text +", `text`, "unknown_var == 1"} {
		if _, err := Compile(expr); err == nil {
			t.Fatalf("expected error for %q", expr)
		}
	}
}

func TestNilFilterMatches(t *testing.T) {
	var f *Filter
	if !f.Match(0, logstore.NewRecord("x", "y")) {
		t.Fatalf("nil filter must match")
	}
}
