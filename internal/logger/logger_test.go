package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		env     string
		level   string
		want    zapcore.Level
		wantErr bool
	}{
		{env: "prod", want: zapcore.InfoLevel},
		{env: "local", want: zapcore.DebugLevel},
		{env: "docker", want: zapcore.DebugLevel},
		{env: "prod", level: "error", want: zapcore.ErrorLevel},
		{env: "local", level: "WARN", want: zapcore.WarnLevel},
		{env: "staging", wantErr: true},
		{env: "prod", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			l, err := New(Options{Env: tt.env, Level: tt.level, Service: "seqdex", Version: "test"})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !l.Core().Enabled(tt.want) {
				t.Errorf("level %s not enabled", tt.want)
			}
			if tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1) {
				t.Errorf("level %s should be disabled", tt.want-1)
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected nop logger")
	}

	l := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("expected stored logger")
	}
}

func TestAnnotate(t *testing.T) {
	// No collector: no panic.
	Annotate(context.Background(), zap.String("kind", "event"))

	ctx, fields := ContextWithFields(context.Background())
	Annotate(ctx, zap.String("kind", "sequence"))
	Annotate(ctx, zap.Int("hits", 3), zap.Bool("exhausted", true))

	got := fields.List()
	if len(got) != 3 {
		t.Fatalf("got %d fields, want 3", len(got))
	}
	if got[0].Key != "kind" || got[0].String != "sequence" {
		t.Errorf("first field = %+v", got[0])
	}
	if got[2].Key != "exhausted" {
		t.Errorf("last field = %+v", got[2])
	}
}
