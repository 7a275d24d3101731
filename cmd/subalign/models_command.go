package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"subalign/internal/api"
	"subalign/internal/models"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var server string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List Whisper model sizes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp := api.ModelsResponse{Models: models.Names(), Catalog: models.Catalog()}
			if c, err := ctx.apiClient(server); err == nil {
				reqCtx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
				remote, err := c.Models(reqCtx)
				cancel()
				if err == nil {
					resp = remote
				}
			}

			if asJSON {
				return writeJSON(cmd, resp)
			}

			title := cases.Title(language.English)
			rows := make([][]string, 0, len(resp.Catalog))
			for _, info := range resp.Catalog {
				loaded := ""
				if info.Name == resp.Loaded {
					loaded = "yes"
				}
				rows = append(rows, []string{
					title.String(info.Name),
					info.Parameters,
					info.Download,
					loaded,
					info.Description,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Model", "Params", "Download", "Loaded", "Notes"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&server, "server", "", "Server address (defaults to server.bind)")
	return cmd
}
