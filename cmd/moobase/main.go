package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "moobase",
		Short: "A content-addressed, versioned object store with a single merged history",
	}

	root.AddCommand(
		newServeCmd(),
		newCloneCmd(),
		newStatCmd(),
		newUserCmd(),
		newHelloCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "moobase:", err)
		os.Exit(1)
	}
}
