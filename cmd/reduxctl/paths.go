package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	redux "github.com/goliatone/go-redux"
	"github.com/goliatone/go-redux/schema/jsonschema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func pathsCmd() *cobra.Command {
	var schema bool
	cmd := &cobra.Command{
		Use:   "paths <state.yaml>",
		Short: "List the selectable paths of a state document",
		Long:  "Reads a YAML or JSON state document and lists every leaf path with its type, or prints a JSON Schema with --schema.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var state map[string]any
			if err := yaml.Unmarshal(data, &state); err != nil {
				return fmt.Errorf("parse state: %w", err)
			}

			out := cmd.OutOrStdout()
			if schema {
				doc, err := jsonschema.Generate(state, jsonschema.WithTitle(args[0]))
				if err != nil {
					return err
				}
				encoded, err := json.MarshalIndent(doc, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(encoded))
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, field := range redux.Describe(state) {
				fmt.Fprintf(tw, "%s\t%s\n", field.Path, field.Type)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&schema, "schema", false, "print a JSON Schema instead of the path list")
	return cmd
}
