package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var uninstallConfirmed bool

func newActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate",
		Short: "Verify the store and create the default settings record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()

			core, err := newCore(ctx)
			if err != nil {
				return err
			}
			defer core.Shutdown()

			if err := core.Lifecycle.Activate(ctx); err != nil {
				return err
			}
			printJSON("activated", true)
			return nil
		},
	}
}

func newDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate",
		Short: "Remove the CiviCRM settings and cached connection tests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()

			core, err := newCore(ctx)
			if err != nil {
				return err
			}
			defer core.Shutdown()

			if err := core.Lifecycle.Deactivate(ctx); err != nil {
				return err
			}
			printJSON("deactivated", true)
			return nil
		},
	}
}

func newUninstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove all settings, including every form's integration settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !uninstallConfirmed {
				return fmt.Errorf("uninstall deletes every stored setting; pass --yes to confirm")
			}

			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()

			core, err := newCore(ctx)
			if err != nil {
				return err
			}
			defer core.Shutdown()

			removed, err := core.Lifecycle.Uninstall(ctx)
			if err != nil {
				return err
			}
			printJSON("forms_removed", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&uninstallConfirmed, "yes", false, "Confirm deletion")
	return cmd
}
