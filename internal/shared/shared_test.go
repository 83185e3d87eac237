package shared

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRedactSecret(t *testing.T) {
	tc := []struct {
		name   string
		secret string
		want   string
	}{
		{name: "empty", secret: "", want: "<empty>"},
		{name: "short", secret: "abc", want: "***"},
		{name: "long", secret: "xyzw1234567890", want: "xyzw****"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactSecret(tt.secret)
			if got != tt.want {
				t.Errorf("RedactSecret(%q) = %q, want %q", tt.secret, got, tt.want)
			}
			if tt.secret != "" && len(tt.secret) > 4 && strings.Contains(got, tt.secret[4:]) {
				t.Errorf("RedactSecret leaked the secret tail: %q", got)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		in   time.Duration
		want string
	}{
		{in: 850 * time.Millisecond, want: "850ms"},
		{in: 4 * time.Second, want: "4s"},
		{in: 65 * time.Second, want: "1m05s"},
		{in: 12*time.Minute + 400*time.Millisecond, want: "12m00s"},
	}

	for _, tt := range tc {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	b, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}

	if a == "" || a == b {
		t.Errorf("expected distinct non-empty states, got %q and %q", a, b)
	}
	if strings.ContainsAny(a, "+/=") {
		t.Errorf("state %q is not URL safe", a)
	}
}

func TestMarshalJSON(t *testing.T) {
	v := map[string]int{"matched": 2}

	compact, err := MarshalJSON(v, false)
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(compact) != `{"matched":2}` {
		t.Errorf("compact = %s", compact)
	}

	pretty, err := MarshalJSON(v, true)
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if !strings.Contains(string(pretty), "\n  \"matched\": 2") {
		t.Errorf("pretty output not indented: %s", pretty)
	}
}

func TestBrowserCommand(t *testing.T) {
	orig := getRuntime
	t.Cleanup(func() { getRuntime = orig })

	tc := []struct {
		goos    string
		want    string
		wantErr bool
	}{
		{goos: "darwin", want: "open"},
		{goos: "linux", want: "xdg-open"},
		{goos: "windows", want: "rundll32"},
		{goos: "plan9", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			getRuntime = func() string { return tt.goos }
			cmd, err := browserCommand("http://127.0.0.1:3000")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unsupported platform")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cmd.Args[0] != tt.want {
				t.Errorf("command = %s, want %s", cmd.Args[0], tt.want)
			}
		})
	}
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "spx.log")

	logger, closer, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	logger.Info("sync started", "playlist", "Road Trip")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if !strings.Contains(string(data), "sync started") || !strings.Contains(string(data), "Road Trip") {
		t.Errorf("log file missing entry, got %q", data)
	}
}
