package main

import (
	"context"
	"fmt"
	"os"

	"civicf7/bridge"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	settingsURL     string
	settingsAPIKey  string
	settingsSiteKey string
	settingsTest    bool
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage the global CiviCRM connection settings",
	}
	cmd.AddCommand(newSettingsShowCmd())
	cmd.AddCommand(newSettingsSetCmd())
	cmd.AddCommand(newSettingsTestCmd())
	cmd.AddCommand(newSettingsClearCmd())
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored settings with keys masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()

			core, err := newCore(ctx)
			if err != nil {
				return err
			}
			defer core.Shutdown()

			creds, err := core.Admin.Settings(ctx)
			if err != nil {
				return err
			}
			masked := creds.Masked()

			table := tablewriter.NewWriter(os.Stdout)
			table.Header([]string{"Setting", "Value"})
			table.Append([]string{"civicrm_url", masked.Endpoint})
			table.Append([]string{"api_key", masked.APIKey})
			table.Append([]string{"site_key", masked.SiteKey})
			if last, err := core.Admin.LastTest(ctx); err == nil && last != nil {
				table.Append([]string{"last_test", last.Code})
			}
			table.Render()
			return nil
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the CiviCRM URL and keys",
		RunE:  runSettingsSet,
	}
	cmd.Flags().StringVar(&settingsURL, "url", "", "CiviCRM API v4 endpoint URL")
	cmd.Flags().StringVar(&settingsAPIKey, "api-key", "", "CiviCRM API key")
	cmd.Flags().StringVar(&settingsSiteKey, "site-key", "", "CiviCRM site key")
	cmd.Flags().BoolVar(&settingsTest, "test", false, "Test the connection first and only save when it succeeds")
	return cmd
}

func runSettingsSet(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	core, err := newCore(ctx)
	if err != nil {
		return err
	}
	defer core.Shutdown()

	// Unset flags keep the stored value.
	current, err := core.Admin.Settings(ctx)
	if err != nil {
		return err
	}
	input := current
	if cmd.Flags().Changed("url") {
		input.Endpoint = settingsURL
	}
	if cmd.Flags().Changed("api-key") {
		input.APIKey = settingsAPIKey
	}
	if cmd.Flags().Changed("site-key") {
		input.SiteKey = settingsSiteKey
	}

	notices, err := core.Admin.Save(ctx, input, settingsTest)
	if err != nil {
		return err
	}
	for _, n := range notices {
		printNotice(n)
		if !n.OK() {
			return fmt.Errorf("settings not saved")
		}
	}
	printJSON("saved", true)
	return nil
}

func newSettingsTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the connection with the stored settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()

			core, err := newCore(ctx)
			if err != nil {
				return err
			}
			defer core.Shutdown()

			notice, err := core.Admin.TestStored(ctx)
			if err != nil {
				return err
			}
			printNotice(notice)
			if !notice.OK() {
				return fmt.Errorf("connection test failed")
			}
			return nil
		},
	}
}

func newSettingsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored settings and cached test results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()

			core, err := newCore(ctx)
			if err != nil {
				return err
			}
			defer core.Shutdown()

			if err := core.Admin.Clear(ctx); err != nil {
				return err
			}
			printJSON("cleared", true)
			return nil
		},
	}
}

func printNotice(n bridge.Notice) {
	printJSON(string(n.Type), fmt.Sprintf("[%s] %s", n.Code, n.Message))
}
