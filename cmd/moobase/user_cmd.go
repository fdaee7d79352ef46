package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/untoldecay/moobase/internal/types"
)

// newUserCmd wires the §6.2 user/* verbs as local CLI sugar, each
// running with Wizard authority the way a trusted local operator does.
func newUserCmd() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts and permissions",
	}

	user.AddCommand(
		userSubcommand("create", "user/create", "Create a new account", cobra.RangeArgs(1, 2)),
		userSubcommand("delete", "user/delete", "Delete an account", cobra.ExactArgs(1)),
		userSubcommand("enable", "user/enable", "Re-enable a disabled account", cobra.ExactArgs(1)),
		userSubcommand("disable", "user/disable", "Disable an account", cobra.ExactArgs(1)),
		userSubcommand("list", "user/list", "List every account", cobra.NoArgs),
		userSubcommand("add-permission", "user/add_permission", "Grant a permission", cobra.ExactArgs(2)),
		userSubcommand("remove-permission", "user/remove_permission", "Revoke a permission", cobra.ExactArgs(2)),
		userSubcommand("generate-api-key", "user/generate_api_key", "Mint an API key", cobra.ExactArgs(1)),
		userSubcommand("delete-api-key", "user/delete_api_key", "Revoke an API key", cobra.ExactArgs(2)),
	)
	return user
}

func userSubcommand(use, operation, short string, argSpec cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  argSpec,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			wizard, _, err := a.users.Get(types.Wizard)
			if err != nil {
				return err
			}

			result, err := a.registry.Dispatch(context.Background(), a.providers, operation, wizard, args)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}
