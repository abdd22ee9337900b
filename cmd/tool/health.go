package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the settings store and Redis",
		RunE:  runHealth,
	}
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	core, err := newCore(ctx)
	if err != nil {
		printJSON("store", "down")
		return err
	}
	defer core.Shutdown()

	status := core.Status(ctx)
	status.Render(os.Stdout)

	if !status.Healthy() {
		return fmt.Errorf("one or more dependencies are down")
	}
	return nil
}
