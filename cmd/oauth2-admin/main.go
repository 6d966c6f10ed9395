// Command oauth2-admin is the operator tool of the Galette OAuth2 bridge.
//
// Subcommands:
//
//	hash-secret   hash a secret read from stdin for the client registry or ADMIN_PASSWORD_HASH
//	clients       validate the client registry and list its clients
//	binding       inspect or repair the redirect URI bound to a client
//	status        check the health and readiness endpoints of a running bridge
//	migrate       apply the local member schema with goose
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "oauth2-admin",
		Short:         "Operate the Galette OAuth2 bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newHashSecretCmd(),
		newClientsCmd(),
		newBindingCmd(),
		newStatusCmd(),
		newMigrateCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
