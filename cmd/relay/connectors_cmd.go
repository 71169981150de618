package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dorcha-inc/relay/internal/connector"
)

const healthCheckTimeout = 10 * time.Second

// newConnectorsCmd creates the connectors command group
func newConnectorsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connectors",
		Short: "Inspect configured connectors",
	}
	cmd.AddCommand(newConnectorsListCmd(configPath))
	cmd.AddCommand(newConnectorsCheckCmd(configPath))
	return cmd
}

// newConnectorsListCmd creates the connectors list command
func newConnectorsListCmd(configPath *string) *cobra.Command {
	var (
		definitionsPath string
		jsonOutput      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured connectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(*configPath, definitionsPath)
			if err != nil {
				return err
			}

			if len(rt.defs.Connectors) == 0 {
				if jsonOutput {
					fmt.Println("[]")
				} else {
					fmt.Println("No connectors configured.")
				}
				return nil
			}

			if jsonOutput {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(rt.defs.Connectors)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			if _, err := fmt.Fprintln(w, "ID\tNAME\tTRANSPORT\tFAMILY\tAUTH"); err != nil {
				return fmt.Errorf("failed to write header: %w", err)
			}
			for _, cfg := range rt.defs.Connectors {
				auth := cfg.Auth
				if auth == "" {
					auth = connector.AuthNone
				}
				if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					cfg.ID, cfg.Name, cfg.Transport, cfg.Family, auth); err != nil {
					return fmt.Errorf("failed to write row: %w", err)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&definitionsPath, "definitions", "", "Path to the definitions yaml file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

// newConnectorsCheckCmd creates the connectors check command
func newConnectorsCheckCmd(configPath *string) *cobra.Command {
	var definitionsPath string

	cmd := &cobra.Command{
		Use:   "check [connector-id...]",
		Short: "Health-check configured connectors",
		Long: `Probe each configured connector: remote connectors through their health
endpoint, subprocess connectors by starting them and listing their tools.
With no arguments every configured connector is checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(*configPath, definitionsPath)
			if err != nil {
				return err
			}
			defer rt.registry.CloseAll()

			ids := args
			if len(ids) == 0 {
				for _, cfg := range rt.defs.Connectors {
					ids = append(ids, cfg.ID)
				}
			}
			if len(ids) == 0 {
				fmt.Println("No connectors configured.")
				return nil
			}

			unhealthy := 0
			for _, id := range ids {
				if _, err := findConfig(rt.defs, id); err != nil {
					fmt.Printf("%s: %v\n", id, err)
					unhealthy++
					continue
				}

				ctx, cancel := context.WithTimeout(cmd.Context(), healthCheckTimeout)
				healthy := checkOne(ctx, rt, id)
				cancel()

				if healthy {
					fmt.Printf("%s: ok\n", id)
				} else {
					fmt.Printf("%s: unhealthy\n", id)
					unhealthy++
				}
			}

			if unhealthy > 0 {
				return fmt.Errorf("%d of %d connectors unhealthy", unhealthy, len(ids))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&definitionsPath, "definitions", "", "Path to the definitions yaml file")

	return cmd
}

func checkOne(ctx context.Context, rt *runtime, id string) bool {
	conn, err := rt.registry.Get(ctx, id)
	if err != nil {
		return false
	}
	return conn.HealthCheck(ctx)
}
