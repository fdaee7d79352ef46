package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/untoldecay/moobase/internal/types"
)

func newCloneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clone [source-url]",
		Short: "Export local state, or pull and replace it from a source-url",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			// A local CLI invocation runs with full local authority, the
			// same trust boundary the teacher's own CLI commands assume
			// for direct filesystem/database access.
			wizard, _, err := a.users.Get(types.Wizard)
			if err != nil {
				return err
			}

			result, err := a.registry.Dispatch(context.Background(), a.providers, "clone", wizard, args)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
