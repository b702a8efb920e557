package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/atlas/pkg/cli"
	"mercator-hq/atlas/pkg/compose/service"
	"mercator-hq/atlas/pkg/controlplane"
)

var composeFlags struct {
	descriptorPath string
	outDir         string
	output         string
	timeout        time.Duration
}

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Compose infrastructure artifacts for a service descriptor",
	Long: `Run the composition pipeline for one service descriptor: resolve
the template layer stack, bind variables, render, and validate the
result against the mandatory policy set. Composition is total or
nothing: any policy violation means no artifacts are released.

The descriptor file is YAML:

  name: checkout
  language: go
  mode: extended
  bindings:
    runtime_version: "1.25"
  overrides:
    monitoring_level: deep
  extensions:
    - name: cache
      bindings:
        cache_size: large
      wiring:
        - from: redis_url
          to: cache_url

Examples:
  # Compose and list the artifact paths
  atlas compose --descriptor checkout.yaml

  # Compose and write the artifacts to a directory
  atlas compose --descriptor checkout.yaml --out ./artifacts`,
	RunE: runCompose,
}

func init() {
	rootCmd.AddCommand(composeCmd)

	composeCmd.Flags().StringVarP(&composeFlags.descriptorPath, "descriptor", "d", "", "service descriptor file (required)")
	composeCmd.Flags().StringVar(&composeFlags.outDir, "out", "", "write artifacts under this directory")
	composeCmd.Flags().StringVarP(&composeFlags.output, "output", "o", "text", "output format (text, json)")
	composeCmd.Flags().DurationVar(&composeFlags.timeout, "timeout", 30*time.Second, "composition timeout")
	_ = composeCmd.MarkFlagRequired("descriptor")
}

// descriptorFile is the on-disk YAML shape of a service descriptor plus
// the caller's bindings.
type descriptorFile struct {
	Name       string          `yaml:"name"`
	Language   string          `yaml:"language"`
	Framework  string          `yaml:"framework"`
	Mode       string          `yaml:"mode"`
	Bindings   map[string]any  `yaml:"bindings"`
	Overrides  map[string]any  `yaml:"overrides"`
	Extensions []extensionFile `yaml:"extensions"`
	Expert     *expertFile     `yaml:"expert"`
}

type extensionFile struct {
	Name     string         `yaml:"name"`
	Bindings map[string]any `yaml:"bindings"`
	Wiring   []wireFile     `yaml:"wiring"`
}

type wireFile struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type expertFile struct {
	Artifacts  map[string]string `yaml:"artifacts"`
	Exemptions []exemptionFile   `yaml:"exemptions"`
}

type exemptionFile struct {
	Path      string `yaml:"path"`
	Signature string `yaml:"signature"`
}

func loadDescriptor(path string) (*service.Descriptor, map[string]service.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading descriptor: %w", err)
	}
	var file descriptorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parsing descriptor: %w", err)
	}

	lang, err := service.ParseLanguage(file.Language)
	if err != nil {
		return nil, nil, err
	}
	mode := service.ModeSimple
	if file.Mode != "" {
		mode, err = service.ParseMode(file.Mode)
		if err != nil {
			return nil, nil, err
		}
	}

	desc := &service.Descriptor{
		Name:      file.Name,
		Language:  lang,
		Framework: file.Framework,
		Mode:      mode,
		Overrides: toValues(file.Overrides),
	}
	for _, ext := range file.Extensions {
		e := service.Extension{Name: ext.Name, Bindings: toValues(ext.Bindings)}
		for _, w := range ext.Wiring {
			e.Wiring = append(e.Wiring, service.Wire{From: w.From, To: w.To})
		}
		desc.Extensions = append(desc.Extensions, e)
	}
	if file.Expert != nil {
		payload := &service.ExpertPayload{Artifacts: file.Expert.Artifacts}
		for _, ex := range file.Expert.Exemptions {
			payload.Exemptions = append(payload.Exemptions, service.Exemption{
				Path:      ex.Path,
				Signature: ex.Signature,
			})
		}
		desc.Expert = payload
	}
	return desc, toValues(file.Bindings), nil
}

// toValues maps loosely-typed YAML values onto the binding value model:
// booleans stay booleans, everything else becomes its string form.
func toValues(raw map[string]any) map[string]service.Value {
	if raw == nil {
		return nil
	}
	values := make(map[string]service.Value, len(raw))
	for name, v := range raw {
		switch typed := v.(type) {
		case bool:
			values[name] = service.Bool(typed)
		case string:
			values[name] = service.String(typed)
		default:
			values[name] = service.String(fmt.Sprintf("%v", typed))
		}
	}
	return values
}

func runCompose(cmd *cobra.Command, args []string) error {
	desc, bindings, err := loadDescriptor(composeFlags.descriptorPath)
	if err != nil {
		return err
	}

	return withControlPlane(composeFlags.timeout, func(ctx context.Context, cp *controlplane.ControlPlane) error {
		result, err := cp.ComposeInfrastructure(ctx, desc, bindings)
		if err != nil {
			return err
		}

		if composeFlags.output == "json" {
			return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, result)
		}

		if len(result.Violations) > 0 {
			fmt.Printf("✗ Composition rejected: %d policy violation(s)\n\n", len(result.Violations))
			for _, v := range result.Violations {
				fmt.Printf("  [%s] %s\n", v.RuleID, v.Message)
				for _, path := range v.Paths {
					fmt.Printf("      %s\n", path)
				}
			}
			return cli.NewCommandError("compose", fmt.Errorf("policy validation failed"))
		}

		if composeFlags.outDir != "" {
			if err := writeArtifacts(composeFlags.outDir, result.Artifacts); err != nil {
				return err
			}
			fmt.Printf("✓ %d artifacts written to %s (mode %s)\n", len(result.Artifacts), composeFlags.outDir, result.Mode)
			return nil
		}

		fmt.Printf("✓ Composed %d artifacts for %s (mode %s)\n\n", len(result.Artifacts), result.Service, result.Mode)
		paths := make([]string, 0, len(result.Artifacts))
		for path := range result.Artifacts {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			fmt.Printf("  %s\n", path)
		}
		return nil
	})
}

func writeArtifacts(dir string, artifacts map[string]string) error {
	for path, content := range artifacts {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("writing artifact %s: %w", path, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing artifact %s: %w", path, err)
		}
	}
	return nil
}
