package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"medialog/internal/preflight"
	"medialog/internal/services"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that engines, staging and the results database are ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			blocking := preflight.Blocking(results)

			if ctx.JSONMode() {
				type checkJSON struct {
					Name   string `json:"name"`
					Passed bool   `json:"passed"`
					Detail string `json:"detail,omitempty"`
				}
				payload := make([]checkJSON, 0, len(results))
				for _, r := range results {
					payload = append(payload, checkJSON{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
				}
				if err := writeJSON(cmd, map[string]any{"config": ctx.configPath, "checks": payload}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
				for _, r := range results {
					kind := statusOK
					if !r.Passed {
						kind = statusError
						if r.Optional {
							kind = statusWarn
						}
					}
					fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
			}

			if len(blocking) > 0 {
				return services.Wrap(services.ErrConfiguration, "check", "preflight",
					fmt.Sprintf("%d check(s) failed", len(blocking)), nil)
			}
			return nil
		},
	}
}
