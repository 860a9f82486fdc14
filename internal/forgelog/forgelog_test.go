package forgelog

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevelRecognizesAllLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBuildProducesUsableLogger(t *testing.T) {
	logger, err := Build("debug", "json", false)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	logger.Info("hello")
	Sync(logger)

	logger2, err := Build("info", "console", true)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	logger2.Warn("careful")
	Sync(logger2)
}
