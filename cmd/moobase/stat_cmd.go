package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/untoldecay/moobase/internal/types"
)

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "Print partition sizes and replication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			everyone, _, err := a.users.Get(types.Everyone)
			if err != nil {
				return err
			}

			result, err := a.registry.Dispatch(context.Background(), a.providers, "system/status", everyone, nil)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func newHelloCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hello",
		Short: "Check that the store can be opened and answer a liveness call",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			everyone, _, err := a.users.Get(types.Everyone)
			if err != nil {
				return err
			}

			result, err := a.registry.Dispatch(context.Background(), a.providers, "hello", everyone, nil)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}
