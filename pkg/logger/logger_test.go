package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestGet_BeforeInit_Panics(t *testing.T) {
	Reset()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	_ = Get()
}

func TestInit_OnlyFirstCallApplies(t *testing.T) {
	Reset()
	defer Reset()

	var first, second bytes.Buffer
	Init(Options{Level: "debug", Output: &first, Service: "scribble"})
	Init(Options{Level: "error", Output: &second})

	l := Get()
	l.Debug().Msg("hello")
	if second.Len() != 0 {
		t.Fatalf("second Init must be ignored, got %q", second.String())
	}
	out := first.String()
	if !strings.Contains(out, `"service":"scribble"`) || !strings.Contains(out, `"message":"hello"`) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestComponent(t *testing.T) {
	Reset()
	defer Reset()

	// Not initialised: disabled logger, no panic.
	dropped := Component("sync")
	dropped.Error().Msg("dropped")

	var buf bytes.Buffer
	Init(Options{Output: &buf})
	ready := Component("sync")
	ready.Info().Msg("ready")
	if !strings.Contains(buf.String(), `"component":"sync"`) {
		t.Fatalf("missing component field: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
