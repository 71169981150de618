package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dorcha-inc/relay/internal/routing"
)

// newRouteCmd creates the route command
func newRouteCmd(configPath *string) *cobra.Command {
	var (
		definitionsPath string
		itemArg         string
		jsonOutput      bool
	)

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Route one item through rules and targets",
		Long: `Route a single captured item: evaluate the routing rules, execute their
actions, and distribute to the static targets. The item is given as inline
JSON, as @path to a JSON file, or as - to read standard input.

Every attempt is reported as one outcome line; a failed attempt never
stops the remaining ones.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := readItem(itemArg)
			if err != nil {
				return err
			}

			rt, err := loadRuntime(*configPath, definitionsPath)
			if err != nil {
				return err
			}
			defer rt.registry.CloseAll()

			rt.items.Put(item)

			outcomes, err := rt.engine.DistributeItem(cmd.Context(), item)
			if err != nil {
				return fmt.Errorf("routing failed: %w", err)
			}

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(outcomes)
			}
			return printOutcomes(outcomes)
		},
	}

	cmd.Flags().StringVar(&definitionsPath, "definitions", "", "Path to the definitions yaml file")
	cmd.Flags().StringVar(&itemArg, "item", "-", "Item JSON, @path to a file, or - for stdin")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output outcomes in JSON format")

	return cmd
}

// readItem parses the item argument: inline JSON, @file, or stdin.
func readItem(arg string) (*routing.Item, error) {
	var data []byte
	var err error

	switch {
	case arg == "" || arg == "-":
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read item from stdin: %w", err)
		}
	case strings.HasPrefix(arg, "@"):
		data, err = os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return nil, fmt.Errorf("failed to read item file: %w", err)
		}
	default:
		data = []byte(arg)
	}

	item := &routing.Item{}
	if err := json.Unmarshal(data, item); err != nil {
		return nil, fmt.Errorf("failed to parse item JSON: %w", err)
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return item, nil
}

// printOutcomes renders outcomes as a table, one row per attempt.
func printOutcomes(outcomes []routing.Outcome) error {
	if len(outcomes) == 0 {
		fmt.Println("No outcomes: no rule matched and no target applied.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "TARGET\tKIND\tCONNECTOR\tSTATUS\tDETAIL"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, outcome := range outcomes {
		detail := outcome.ExternalURL
		if detail == "" {
			detail = outcome.ExternalID
		}
		if outcome.Status == routing.StatusFailed {
			detail = outcome.Error
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			outcome.TargetID, outcome.Kind, outcome.Connector, outcome.Status, detail); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return w.Flush()
}
