package compose

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"mercator-hq/atlas/pkg/compose/layout"
	"mercator-hq/atlas/pkg/compose/policy"
	"mercator-hq/atlas/pkg/compose/render"
	"mercator-hq/atlas/pkg/compose/service"
)

var testExemptionKey = []byte("pipeline-test-key")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeLayer(t *testing.T, root, id, manifest string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "layer.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path)+layout.TemplateSuffix)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// fixtureComposer builds a composer over a realistic four-layer library:
// base, platform with mandatory files, a Go language layer, and a cache
// extension with a wired output.
func fixtureComposer(t *testing.T) *Composer {
	t.Helper()
	root := t.TempDir()

	writeLayer(t, root, "base",
		"rank: 0\nrequired: [service_name, runtime_version]\n",
		map[string]string{
			"service.yaml": "name: {{service_name}}\nlanguage: {{language}}\nruntime_version: {{runtime_version}}\n",
		})

	writeLayer(t, root, "platform",
		"rank: 10\n"+
			"mandatory_files: [platform/tls.conf, observability/monitoring.yaml]\n"+
			"defaults:\n  tls_enabled: true\n  monitoring_level: basic\n",
		map[string]string{
			"platform/tls.conf":             "tls_enabled: {{tls_enabled}}\n",
			"observability/monitoring.yaml": "service: {{service_name}}\nlevel: {{monitoring_level}}\n",
		})

	writeLayer(t, root, "lang-go",
		"rank: 20\nrequired: [runtime_version]\n",
		map[string]string{
			"build/go.conf": "go {{runtime_version}}\n{{#if_eq monitoring_level \"deep\"}}pprof: enabled\n{{/if_eq}}",
		})

	writeLayer(t, root, "ext-cache",
		"rank: 30\n"+
			"outputs:\n  redis_url: redis://{{service_name}}-cache:6379\n",
		map[string]string{
			"app/cache.conf": "url: {{cache_url}}\n",
		})

	writeLayer(t, root, "ext-metrics",
		"rank: 31\n",
		map[string]string{
			"app/metrics.conf": "service: {{service_name}}\n",
		})

	library, err := layout.NewLoader(root, quietLogger()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	resolver := layout.NewResolver(library, layout.ResolverConfig{ExemptionKey: testExemptionKey}, quietLogger())
	return NewComposer(resolver, policy.NewMandatoryValidator(quietLogger()), quietLogger())
}

func simpleDescriptor(name string) *service.Descriptor {
	return &service.Descriptor{
		Name:     name,
		Language: service.LanguageGo,
		Mode:     service.ModeSimple,
	}
}

func callerBindings() map[string]service.Value {
	return map[string]service.Value{
		"runtime_version": service.String("1.25"),
	}
}

func TestComposer_SimpleMode(t *testing.T) {
	composer := fixtureComposer(t)

	result, err := composer.Compose(context.Background(), simpleDescriptor("checkout"), callerBindings())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(result.Violations) != 0 {
		t.Fatalf("unexpected violations: %v", result.Violations)
	}

	want := map[string]string{
		"service.yaml":                  "name: checkout\nlanguage: go\nruntime_version: 1.25\n",
		"platform/tls.conf":             "tls_enabled: true\n",
		"observability/monitoring.yaml": "service: checkout\nlevel: basic\n",
		"build/go.conf":                 "go 1.25\n",
	}
	if !reflect.DeepEqual(result.Artifacts, want) {
		t.Errorf("artifacts = %#v, want %#v", result.Artifacts, want)
	}

	if mode, ok := composer.Ledger().Mode("checkout"); !ok || mode != service.ModeSimple {
		t.Errorf("ledger mode = %v, %v, want simple", mode, ok)
	}
}

func TestComposer_ConfiguredOverrideRebinds(t *testing.T) {
	composer := fixtureComposer(t)

	desc := simpleDescriptor("checkout")
	desc.Mode = service.ModeConfigured
	desc.Overrides = map[string]service.Value{
		"monitoring_level": service.String("deep"),
	}

	result, err := composer.Compose(context.Background(), desc, callerBindings())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got := result.Artifacts["observability/monitoring.yaml"]; !strings.Contains(got, "level: deep") {
		t.Errorf("monitoring.yaml = %q, want level: deep", got)
	}
	if got := result.Artifacts["build/go.conf"]; !strings.Contains(got, "pprof: enabled") {
		t.Errorf("go.conf = %q, want pprof enabled at deep monitoring", got)
	}

	// Overrides rebind variables; they never change the file set.
	base, err := composer.Compose(context.Background(), simpleDescriptor("other"), callerBindings())
	if err != nil {
		t.Fatalf("Compose simple: %v", err)
	}
	if len(result.Artifacts) != len(base.Artifacts) {
		t.Errorf("configured produced %d files, simple %d", len(result.Artifacts), len(base.Artifacts))
	}
}

func TestComposer_OverrideUnknownNameRejected(t *testing.T) {
	composer := fixtureComposer(t)

	desc := simpleDescriptor("checkout")
	desc.Mode = service.ModeConfigured
	desc.Overrides = map[string]service.Value{
		"no_such_variable": service.String("x"),
	}

	_, err := composer.Compose(context.Background(), desc, callerBindings())
	var mismatch *OverrideMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Compose error = %v, want OverrideMismatchError", err)
	}
	if mismatch.Variable != "no_such_variable" {
		t.Errorf("Variable = %q, want no_such_variable", mismatch.Variable)
	}
}

func TestComposer_ExtensionWiring(t *testing.T) {
	composer := fixtureComposer(t)

	desc := simpleDescriptor("checkout")
	desc.Mode = service.ModeExtended
	desc.Extensions = []service.Extension{{
		Name:   "cache",
		Wiring: []service.Wire{{From: "redis_url", To: "cache_url"}},
	}}

	result, err := composer.Compose(context.Background(), desc, callerBindings())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got, want := result.Artifacts["app/cache.conf"], "url: redis://checkout-cache:6379\n"; got != want {
		t.Errorf("cache.conf = %q, want %q", got, want)
	}
}

func TestComposer_DanglingWireFails(t *testing.T) {
	composer := fixtureComposer(t)

	// The metrics extension produces no outputs, so a wire from
	// redis_url has no source: the cache extension was never added.
	desc := simpleDescriptor("checkout")
	desc.Mode = service.ModeExtended
	desc.Extensions = []service.Extension{{
		Name:   "metrics",
		Wiring: []service.Wire{{From: "redis_url", To: "cache_url"}},
	}}

	_, err := composer.Compose(context.Background(), desc, callerBindings())
	var missing *render.MissingVariableError
	if !errors.As(err, &missing) {
		t.Fatalf("Compose error = %v, want MissingVariableError", err)
	}
	if missing.Variable != "redis_url" {
		t.Errorf("Variable = %q, want redis_url", missing.Variable)
	}
}

func TestComposer_ModeDowngradeRejected(t *testing.T) {
	composer := fixtureComposer(t)

	extended := simpleDescriptor("checkout")
	extended.Mode = service.ModeExtended
	extended.Extensions = []service.Extension{{Name: "metrics"}}
	if _, err := composer.Compose(context.Background(), extended, callerBindings()); err != nil {
		t.Fatalf("Compose extended: %v", err)
	}

	configured := simpleDescriptor("checkout")
	configured.Mode = service.ModeConfigured
	_, err := composer.Compose(context.Background(), configured, callerBindings())
	var downgrade *service.ModeDowngradeError
	if !errors.As(err, &downgrade) {
		t.Fatalf("Compose error = %v, want ModeDowngradeError", err)
	}
	if downgrade.Previous != service.ModeExtended || downgrade.Requested != service.ModeConfigured {
		t.Errorf("downgrade = %v -> %v, want extended -> configured", downgrade.Previous, downgrade.Requested)
	}

	// Same mode is always allowed.
	if _, err := composer.Compose(context.Background(), extended, callerBindings()); err != nil {
		t.Fatalf("Compose at same mode: %v", err)
	}

	// An explicit reset reopens lower modes.
	composer.Ledger().Reset("checkout")
	if _, err := composer.Compose(context.Background(), configured, callerBindings()); err != nil {
		t.Fatalf("Compose after reset: %v", err)
	}
}

func TestComposer_ExpertInjectsMandatoryFiles(t *testing.T) {
	composer := fixtureComposer(t)

	desc := simpleDescriptor("checkout")
	desc.Mode = service.ModeExpert
	desc.Expert = &service.ExpertPayload{
		Artifacts: map[string]string{
			"service.yaml": "name: checkout\nlanguage: go\nruntime_version: 1.25\n",
			"main.tf":      "resource \"aws_ecs_service\" \"checkout\" {}\n",
			// An attempt to displace a mandatory file loses to injection.
			"platform/tls.conf": "tls_enabled: maybe\n",
		},
	}

	result, err := composer.Compose(context.Background(), desc, callerBindings())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(result.Violations) != 0 {
		t.Fatalf("unexpected violations: %v", result.Violations)
	}
	if got, want := result.Artifacts["platform/tls.conf"], "tls_enabled: true\n"; got != want {
		t.Errorf("tls.conf = %q, want injected %q", got, want)
	}
	if _, ok := result.Artifacts["observability/monitoring.yaml"]; !ok {
		t.Error("monitoring.yaml was not injected")
	}
	if _, ok := result.Artifacts["main.tf"]; !ok {
		t.Error("caller artifact main.tf missing")
	}
	// Only the mandatory slice of the platform layer is injected.
	if _, ok := result.Artifacts["build/go.conf"]; ok {
		t.Error("language layer leaked into expert composition")
	}
}

func TestComposer_ExpertExemptionHonored(t *testing.T) {
	composer := fixtureComposer(t)

	desc := simpleDescriptor("checkout")
	desc.Mode = service.ModeExpert
	desc.Expert = &service.ExpertPayload{
		Artifacts: map[string]string{
			"service.yaml":                  "name: checkout\nlanguage: go\nruntime_version: 1.25\n",
			"platform/tls.conf":             "tls_enabled: true\nciphers: custom\n",
			"observability/monitoring.yaml": "level: custom\n",
		},
		Exemptions: []service.Exemption{{
			Path:      "platform/tls.conf",
			Signature: layout.SignExemption(testExemptionKey, "checkout", "platform/tls.conf"),
		}},
	}

	result, err := composer.Compose(context.Background(), desc, callerBindings())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(result.Violations) != 0 {
		t.Fatalf("unexpected violations: %v", result.Violations)
	}
	if got := result.Artifacts["platform/tls.conf"]; !strings.Contains(got, "ciphers: custom") {
		t.Errorf("tls.conf = %q, want the exempted caller version", got)
	}
}

func TestComposer_ExpertRejectsExtensions(t *testing.T) {
	composer := fixtureComposer(t)

	desc := simpleDescriptor("checkout")
	desc.Mode = service.ModeExpert
	desc.Expert = &service.ExpertPayload{
		Artifacts: map[string]string{
			"service.yaml": "name: checkout\nlanguage: go\nruntime_version: 1.25\n",
		},
	}
	desc.Extensions = []service.Extension{{Name: "cache"}}

	// The expert payload is the complete artifact set; a declared
	// extension would never be applied, so it is rejected up front.
	if _, err := composer.Compose(context.Background(), desc, callerBindings()); err == nil {
		t.Fatal("expert descriptor with extensions must be rejected")
	}
}

func TestComposer_ViolationsReturnNoArtifacts(t *testing.T) {
	composer := fixtureComposer(t)

	desc := simpleDescriptor("checkout")
	desc.Mode = service.ModeConfigured
	desc.Overrides = map[string]service.Value{
		"tls_enabled": service.Bool(false),
	}

	result, err := composer.Compose(context.Background(), desc, callerBindings())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(result.Violations) == 0 {
		t.Fatal("want tls_required violation, got none")
	}
	if result.Artifacts != nil {
		t.Errorf("artifacts = %v, want none alongside violations", result.Artifacts)
	}
	found := false
	for _, v := range result.Violations {
		if v.RuleID == policy.RuleTLSRequired {
			found = true
		}
	}
	if !found {
		t.Errorf("violations = %v, want rule %s", result.Violations, policy.RuleTLSRequired)
	}

	// A rejected composition must not ratchet the mode ledger.
	if _, ok := composer.Ledger().Mode("checkout"); ok {
		t.Error("ledger recorded a mode for a rejected composition")
	}
}

func TestComposer_Deterministic(t *testing.T) {
	composer := fixtureComposer(t)

	desc := simpleDescriptor("checkout")
	desc.Mode = service.ModeExtended
	desc.Extensions = []service.Extension{{
		Name:   "cache",
		Wiring: []service.Wire{{From: "redis_url", To: "cache_url"}},
	}}

	first, err := composer.Compose(context.Background(), desc, callerBindings())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := composer.Compose(context.Background(), desc, callerBindings())
		if err != nil {
			t.Fatalf("Compose #%d: %v", i, err)
		}
		if !reflect.DeepEqual(again.Artifacts, first.Artifacts) {
			t.Fatalf("composition #%d differs from the first", i)
		}
	}
}

func TestComposer_Cancellation(t *testing.T) {
	composer := fixtureComposer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := composer.Compose(ctx, simpleDescriptor("checkout"), callerBindings())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Compose error = %v, want context.Canceled", err)
	}
}

func TestComposer_BindingProvenance(t *testing.T) {
	composer := fixtureComposer(t)

	desc := simpleDescriptor("checkout")
	desc.Mode = service.ModeConfigured
	desc.Overrides = map[string]service.Value{
		"monitoring_level": service.String("deep"),
	}

	result, err := composer.Compose(context.Background(), desc, callerBindings())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	byName := make(map[string]service.Binding)
	for _, b := range result.Bindings {
		byName[b.Name] = b
	}
	if got := byName["monitoring_level"].Layer; got != "override" {
		t.Errorf("monitoring_level layer = %q, want override", got)
	}
	if got := byName["tls_enabled"].Layer; got != "platform" {
		t.Errorf("tls_enabled layer = %q, want platform", got)
	}
	if got := byName["runtime_version"].Layer; got != "caller" {
		t.Errorf("runtime_version layer = %q, want caller", got)
	}
	if got := byName["service_name"].Layer; got != "descriptor" {
		t.Errorf("service_name layer = %q, want descriptor", got)
	}
}
