package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		env     string
		want    zerolog.Level
		wantErr bool
	}{
		{name: "default info", want: zerolog.InfoLevel},
		{name: "configured warn", opts: Options{Level: "warn"}, want: zerolog.WarnLevel},
		{name: "env when unconfigured", env: "error", want: zerolog.ErrorLevel},
		{name: "configured wins over env", opts: Options{Level: "debug"}, env: "error", want: zerolog.DebugLevel},
		{name: "verbose forces debug", opts: Options{Level: "error", Verbose: true}, want: zerolog.DebugLevel},
		{name: "invalid level", opts: Options{Level: "chatty"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.env)
			tt.opts.Out = &bytes.Buffer{}

			logger, closeFn, err := New(tt.opts)
			defer closeFn()

			if tt.wantErr {
				if err == nil {
					t.Fatal("New() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if logger.GetLevel() != tt.want {
				t.Errorf("level = %s, want %s", logger.GetLevel(), tt.want)
			}
		})
	}
}

func TestNewWritesFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "logs", "footprint.log")
	var console bytes.Buffer

	logger, closeFn, err := New(Options{File: path, Out: &console})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resolverLog := Component(logger, "resolver")
	resolverLog.Info().Int("domains", 3).Msg("batch done")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, `"component":"resolver"`) || !strings.Contains(line, `"domains":3`) {
		t.Errorf("log file line = %s", line)
	}
	if !strings.Contains(console.String(), "batch done") {
		t.Errorf("console output = %q", console.String())
	}
}
