package main

import "testing"

func TestRootCommandWiring(t *testing.T) {
	want := map[string]bool{
		"run":        false,
		"status":     false,
		"drift":      false,
		"compose":    false,
		"validate":   false,
		"layers":     false,
		"audit":      false,
		"version":    false,
		"completion": false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestGlobalFlags(t *testing.T) {
	if rootCmd.PersistentFlags().Lookup("config") == nil {
		t.Error("missing --config flag")
	}
	if rootCmd.PersistentFlags().Lookup("verbose") == nil {
		t.Error("missing --verbose flag")
	}
}

func TestLayersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range layersCmd.Commands() {
		names[cmd.Name()] = true
	}
	if !names["list"] || !names["lint"] {
		t.Errorf("layers subcommands = %v, want list and lint", names)
	}
}
