package utils

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
	}{
		{"42", int64(42)},
		{" 1.5 ", 1.5},
		{"None", nil},
		{"", nil},
		{"NULL", nil},
		{"abc", "abc"},
	}
	for _, tt := range tests {
		if got := ParseValue(tt.in); got != tt.want {
			t.Errorf("ParseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestAsFloat(t *testing.T) {
	tests := []struct {
		in   interface{}
		want float64
		ok   bool
	}{
		{3, 3, true},
		{int64(-2), -2, true},
		{uint8(7), 7, true},
		{float32(0.5), 0.5, true},
		{"2.25", 2.25, true},
		{[]byte("1e3"), 1000, true},
		{"x", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := AsFloat(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("AsFloat(%#v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("90s"); got != 90*time.Second {
		t.Errorf("ParseDuration(90s) = %v", got)
	}
	for _, in := range []string{"", "soon"} {
		if got := ParseDuration(in); got != 5*time.Minute {
			t.Errorf("ParseDuration(%q) = %v, want 5m", in, got)
		}
	}
}

func TestAngles(t *testing.T) {
	for _, tt := range []struct{ in, want float64 }{
		{0, 0}, {190, -170}, {-190, 170}, {540, -180},
	} {
		if got := WrapDegrees(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("WrapDegrees(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := AngularSeparation(359.5, 0, 0.5, 0); math.Abs(got-1) > 1e-9 {
		t.Errorf("separation across ra=0 = %v, want 1", got)
	}
	if got := AngularSeparation(10, 90, 200, 90); got > 1e-9 {
		t.Errorf("separation at the pole = %v, want 0", got)
	}
}

func TestOutputManager(t *testing.T) {
	om := NewOutputManager(t.TempDir())
	path, err := om.GetOutputFilePath("job1", "../../escape.csv")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(om.BaseOutputDir, "job1", "escape.csv") {
		t.Errorf("path = %s", path)
	}
	if err := os.WriteFile(path, []byte("# a\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if size, err := om.GetFileSize(path); err != nil || size != 4 {
		t.Errorf("GetFileSize = %d, %v", size, err)
	}

	for name, want := range map[string]string{
		"c.JSON":   "application/json",
		"c.csv":    "text/csv",
		"c.sqlite": "application/vnd.sqlite3",
		"c.txt":    "text/plain; charset=utf-8",
	} {
		if got := om.ContentType(name); got != want {
			t.Errorf("ContentType(%s) = %s, want %s", name, got, want)
		}
	}
	if got := om.GetDownloadURL("job1"); got != "/api/v1/catalogs/job1/download" {
		t.Errorf("GetDownloadURL = %s", got)
	}
}
