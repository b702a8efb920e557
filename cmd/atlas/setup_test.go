package main

import (
	"errors"
	"testing"

	"mercator-hq/atlas/pkg/cli"
	"mercator-hq/atlas/pkg/config"
)

func loggingConfig(level, format string) *config.Config {
	return &config.Config{
		Telemetry: config.TelemetryConfig{
			Logging: config.LoggingConfig{
				Level:  level,
				Format: format,
			},
		},
	}
}

func TestBuildLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"json", "info", "json"},
		{"text", "debug", "text"},
		{"defaults", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := buildLogger(loggingConfig(tt.level, tt.format))
			if err != nil {
				t.Fatalf("buildLogger() error = %v", err)
			}
			if logger == nil {
				t.Fatal("buildLogger() returned nil logger")
			}
		})
	}
}

func TestBuildLogger_BadFormat(t *testing.T) {
	_, err := buildLogger(loggingConfig("info", "xml"))
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	var ce *cli.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("error = %T, want *cli.ConfigError", err)
	}
}

func TestBuildLogger_VerboseForcesDebug(t *testing.T) {
	orig := verbose
	verbose = true
	defer func() { verbose = orig }()

	logger, err := buildLogger(loggingConfig("error", "json"))
	if err != nil {
		t.Fatalf("buildLogger() error = %v", err)
	}
	if logger == nil {
		t.Fatal("buildLogger() returned nil logger")
	}
}
