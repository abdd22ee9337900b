package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"civicf7/bridge"

	"github.com/spf13/cobra"
)

var (
	relayForm     string
	relayTitle    string
	relayData     string
	relayDataFile string
)

func newRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Relay a submission to CiviCRM as if the form had just been sent",
		RunE:  runRelay,
	}

	cmd.Flags().StringVar(&relayForm, "form", "", "Form id")
	cmd.Flags().StringVar(&relayTitle, "title", "", "Form title reported with failures")
	cmd.Flags().StringVar(&relayData, "data", "", "Posted data (JSON object)")
	cmd.Flags().StringVar(&relayDataFile, "data-file", "", "Path to a JSON file with the posted data")

	_ = cmd.MarkFlagRequired("form")
	return cmd
}

func runRelay(cmd *cobra.Command, _ []string) error {
	formID, err := bridge.ParseFormID(relayForm)
	if err != nil {
		return err
	}
	data, err := readPostedData()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	core, err := newCore(ctx)
	if err != nil {
		return err
	}
	defer core.Shutdown()

	outcome := core.Relay.HandleMailSent(ctx, formID, &bridge.Submission{
		FormID:     formID,
		Title:      relayTitle,
		PostedData: data,
	})

	printJSON("relay_id", outcome.Id)
	printJSON("state", outcome.State)
	if outcome.ContactID != 0 {
		printJSON("contact_id", outcome.ContactID)
		printJSON("group_enrolled", outcome.GroupEnrolled)
	}
	if outcome.State == bridge.Failed {
		return fmt.Errorf("relay failed: %s", outcome.Error)
	}
	return nil
}

func readPostedData() (map[string]any, error) {
	var raw []byte
	switch {
	case relayDataFile != "":
		data, err := os.ReadFile(relayDataFile)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("data file is empty")
		}
		raw = data
	case relayData != "":
		raw = []byte(relayData)
	default:
		return nil, fmt.Errorf("data or data-file is required")
	}

	var posted map[string]any
	if err := json.Unmarshal(raw, &posted); err != nil {
		return nil, fmt.Errorf("posted data must be a JSON object: %w", err)
	}
	return posted, nil
}
