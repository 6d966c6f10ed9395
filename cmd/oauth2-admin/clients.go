package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/galette-community/plugin-oauth2/internal/authz"
	"github.com/galette-community/plugin-oauth2/internal/clients"
)

// ClientSummary is one registry entry as reported by the clients command.
type ClientSummary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	RedirectURI string   `json:"redirect_uri,omitempty"`
	LogoutURI   string   `json:"logout_uri"`
	Options     []string `json:"options"`
}

// RegistryReport is the output of the clients command.
type RegistryReport struct {
	Secret  string          `json:"secret"` // hash, plain
	Clients []ClientSummary `json:"clients"`
}

func newClientsCmd() *cobra.Command {
	var (
		file       string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Validate the client registry and list its clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := clients.Load(file)
			if err != nil {
				return err
			}
			report, err := inspectRegistry(registry)
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return printRegistry(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/config.yml", "Client registry file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON format")
	return cmd
}

func inspectRegistry(registry *clients.ConfigStore) (RegistryReport, error) {
	secret := registry.Secret()
	report := RegistryReport{Secret: "hash"}
	switch {
	case secret.Empty():
		return report, clients.ErrNoSecret
	case secret.Hash == "":
		report.Secret = "plain"
	}

	for _, id := range registry.IDs() {
		opts, err := authz.ParseOptions(registry.Options(id))
		if err != nil {
			return report, fmt.Errorf("client %s: %w", id, err)
		}
		reg, _ := registry.Get(id)
		report.Clients = append(report.Clients, ClientSummary{
			ID:          id,
			Title:       registry.Title(id),
			RedirectURI: reg.RedirectURI,
			LogoutURI:   registry.LogoutURI(id),
			Options:     opts.Strings(),
		})
	}
	return report, nil
}

func printRegistry(w io.Writer, report RegistryReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIENT\tTITLE\tREDIRECT URI\tOPTIONS")
	for _, c := range report.Clients {
		redirect := c.RedirectURI
		if redirect == "" {
			redirect = "(bound on first use)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", c.ID, c.Title, redirect, c.Options)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if report.Secret == "plain" {
		_, err := fmt.Fprintln(w, "warning: global secret is stored in clear text, use hash-secret and password_hash")
		return err
	}
	return nil
}
