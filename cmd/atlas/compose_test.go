package main

import (
	"os"
	"path/filepath"
	"testing"

	"mercator-hq/atlas/pkg/compose/service"
)

func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "service.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDescriptor_Full(t *testing.T) {
	path := writeDescriptor(t, `
name: checkout
language: go
framework: gin
mode: extended
bindings:
  runtime_version: "1.25"
  replicas: 3
overrides:
  tls_enabled: false
extensions:
  - name: cache
    bindings:
      cache_size: large
    wiring:
      - from: redis_url
        to: cache_url
`)

	desc, bindings, err := loadDescriptor(path)
	if err != nil {
		t.Fatalf("loadDescriptor: %v", err)
	}

	if desc.Name != "checkout" || desc.Language != service.LanguageGo || desc.Framework != "gin" {
		t.Fatalf("descriptor = %+v", desc)
	}
	if desc.Mode != service.ModeExtended {
		t.Fatalf("mode = %v, want extended", desc.Mode)
	}
	if got := bindings["runtime_version"]; got != service.String("1.25") {
		t.Fatalf("runtime_version binding = %+v", got)
	}
	if got := bindings["replicas"]; got != service.String("3") {
		t.Fatalf("replicas binding = %+v (numbers should stringify)", got)
	}
	if got := desc.Overrides["tls_enabled"]; got != service.Bool(false) {
		t.Fatalf("tls_enabled override = %+v", got)
	}
	if len(desc.Extensions) != 1 {
		t.Fatalf("got %d extensions", len(desc.Extensions))
	}
	ext := desc.Extensions[0]
	if ext.Name != "cache" || len(ext.Wiring) != 1 || ext.Wiring[0].From != "redis_url" || ext.Wiring[0].To != "cache_url" {
		t.Fatalf("extension = %+v", ext)
	}
}

func TestLoadDescriptor_ModeDefaultsToSimple(t *testing.T) {
	path := writeDescriptor(t, "name: billing\nlanguage: python\n")

	desc, _, err := loadDescriptor(path)
	if err != nil {
		t.Fatalf("loadDescriptor: %v", err)
	}
	if desc.Mode != service.ModeSimple {
		t.Fatalf("mode = %v, want simple", desc.Mode)
	}
}

func TestLoadDescriptor_UnknownLanguage(t *testing.T) {
	path := writeDescriptor(t, "name: billing\nlanguage: cobol\n")

	if _, _, err := loadDescriptor(path); err == nil {
		t.Fatal("expected error for unknown language")
	}
}

func TestLoadDescriptor_ExpertPayload(t *testing.T) {
	path := writeDescriptor(t, `
name: legacy
language: java
mode: expert
expert:
  artifacts:
    service.yaml: "name: legacy\n"
  exemptions:
    - path: platform/tls.conf
      signature: deadbeef
`)

	desc, _, err := loadDescriptor(path)
	if err != nil {
		t.Fatalf("loadDescriptor: %v", err)
	}
	if desc.Expert == nil || len(desc.Expert.Artifacts) != 1 {
		t.Fatalf("expert payload = %+v", desc.Expert)
	}
	if len(desc.Expert.Exemptions) != 1 || desc.Expert.Exemptions[0].Path != "platform/tls.conf" {
		t.Fatalf("exemptions = %+v", desc.Expert.Exemptions)
	}
}

func TestToValues_Nil(t *testing.T) {
	if got := toValues(nil); got != nil {
		t.Fatalf("toValues(nil) = %v, want nil", got)
	}
}
