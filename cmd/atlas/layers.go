package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mercator-hq/atlas/pkg/compose/layout"
	"mercator-hq/atlas/pkg/compose/service"
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "Inspect the template layer library",
}

var layersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the loaded template layers",
	Long: `Load the template library and list every layer with its rank and
file count.`,
	RunE: runLayersList,
}

var layersLintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check the template library for structural problems",
	Long: `Load the template library and verify its structure: the base and
platform layers must exist, every language with a runtime policy should
have a language layer, and every mandatory file must have a template.

A corrupt manifest or a mandatory file without a template fails the
load itself; lint reports the gaps a load cannot catch.`,
	RunE: runLayersLint,
}

func init() {
	rootCmd.AddCommand(layersCmd)
	layersCmd.AddCommand(layersListCmd)
	layersCmd.AddCommand(layersLintCmd)
}

func loadLibrary() (*layout.Library, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}
	return layout.NewLoader(cfg.Templates.Root, logger).Load()
}

func runLayersList(cmd *cobra.Command, args []string) error {
	library, err := loadLibrary()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LAYER\tRANK\tFILES\tMANDATORY\tOUTPUTS")
	for _, id := range library.IDs() {
		layer, _ := library.Get(id)
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n",
			id, layer.Manifest.Rank, len(layer.Files),
			len(layer.Manifest.MandatoryFiles), len(layer.Manifest.Outputs))
	}
	return w.Flush()
}

func runLayersLint(cmd *cobra.Command, args []string) error {
	library, err := loadLibrary()
	if err != nil {
		return err
	}

	var problems []string
	if _, ok := library.Get(layout.LayerBase); !ok {
		problems = append(problems, "base layer is missing")
	}
	if _, ok := library.Get(layout.LayerPlatform); !ok {
		problems = append(problems, "platform layer is missing")
	}
	for _, lang := range service.Languages() {
		if _, ok := library.Get(layout.LanguageLayerID(lang.String())); !ok {
			problems = append(problems, fmt.Sprintf("no layer for language %q", lang))
		}
	}
	for _, id := range library.IDs() {
		layer, _ := library.Get(id)
		if len(layer.Manifest.Outputs) > 0 && !layout.IsExtensionLayer(id) {
			problems = append(problems, fmt.Sprintf("layer %q declares outputs but is not an extension layer", id))
		}
		if len(layer.Files) == 0 && len(layer.Manifest.Outputs) == 0 {
			problems = append(problems, fmt.Sprintf("layer %q has no templates and no outputs", id))
		}
	}

	if len(problems) == 0 {
		fmt.Printf("✓ %d layers, no problems found\n", library.Len())
		return nil
	}
	fmt.Printf("✗ %d problem(s):\n\n", len(problems))
	for _, p := range problems {
		fmt.Printf("  %s\n", p)
	}
	return fmt.Errorf("template library lint failed")
}
