// Command fhirpath evaluates a FHIRPath expression against a FHIR
// resource from the command line. It is a thin demonstration front-end
// over pkg/fhirpath, not a product surface in its own right.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gofhirpath/fhirpath/pkg/fhirpath"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fhirpath",
		Short: "Evaluate FHIRPath expressions against FHIR resources",
		Long: `fhirpath is a command-line FHIRPath evaluator.

It tokenizes, parses, and evaluates a FHIRPath expression against a JSON
FHIR resource, printing the resulting collection.`,
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newEvalCmd())
	rootCmd.AddCommand(newAnalyzeCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("fhirpath version %s\n", version)
		},
	}
}

func newEvalCmd() *cobra.Command {
	var outputFormat string
	var rootType string
	var analyze bool

	cmd := &cobra.Command{
		Use:   "eval [expression] [file]",
		Short: "Evaluate a FHIRPath expression",
		Long: `Evaluate a FHIRPath expression against a FHIR resource.

Examples:
  fhirpath eval "Patient.name.given" patient.json
  fhirpath eval "Observation.value.ofType(Quantity).value" observation.json
  fhirpath eval "Bundle.entry.resource.ofType(Patient)" bundle.json --output json`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			expression := args[0]
			filePath := args[1]

			resourceData, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("failed to read file %s: %w", filePath, err)
			}

			compiled, err := fhirpath.Compile(expression)
			if err != nil {
				return fmt.Errorf("invalid FHIRPath expression: %w", err)
			}

			var opts []fhirpath.EvalOption
			if analyze {
				opts = append(opts, fhirpath.WithAnalyze(rootType))
			}

			result, err := compiled.EvaluateWithOptions(resourceData, opts...)
			if err != nil {
				return fmt.Errorf("evaluation error: %w", err)
			}

			switch outputFormat {
			case "json":
				return outputJSON(result)
			default:
				return outputText(result)
			}
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, json)")
	cmd.Flags().StringVar(&rootType, "root-type", "", "FHIR resource type $this starts bound to (used with --analyze)")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Run static analysis before evaluation")

	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var rootType string

	cmd := &cobra.Command{
		Use:   "analyze [expression]",
		Short: "Statically check a FHIRPath expression without evaluating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			compiled, err := fhirpath.Compile(args[0])
			if err != nil {
				return fmt.Errorf("invalid FHIRPath expression: %w", err)
			}

			diags := compiled.Analyze(nil, rootType)
			if len(diags) == 0 {
				fmt.Println("no issues found")
				return nil
			}
			for _, d := range diags {
				fmt.Printf("[%s] %s\n", d.Code, d.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rootType, "root-type", "", "FHIR resource type $this starts bound to")

	return cmd
}

func outputText(result fhirpath.Collection) error {
	if result.Empty() {
		fmt.Println("(empty)")
		return nil
	}

	for i, value := range result {
		if len(result) > 1 {
			fmt.Printf("[%d] ", i)
		}
		fmt.Println(value.String())
	}
	return nil
}

func outputJSON(result fhirpath.Collection) error {
	if result.Empty() {
		fmt.Println("[]")
		return nil
	}

	output := make([]interface{}, len(result))
	for i, value := range result {
		output[i] = valueToInterface(value)
	}

	jsonBytes, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	fmt.Println(string(jsonBytes))
	return nil
}

func valueToInterface(v fhirpath.Value) interface{} {
	switch val := v.(type) {
	case interface{ Bool() bool }:
		return val.Bool()
	case interface{ Value() int64 }:
		return val.Value()
	case interface{ Value() string }:
		return val.Value()
	default:
		return v.String()
	}
}
