package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"civicf7/bridge"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	formEnabled     bool
	formAction      string
	formMapping     string
	formMappingFile string
	formsFile       string
)

// formsDocument is the YAML layout used by export and import.
type formsDocument struct {
	Forms []formEntry `yaml:"forms"`
}

type formEntry struct {
	FormID            uint64 `yaml:"form_id"`
	bridge.PanelInput `yaml:",inline"`
}

func newFormsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forms",
		Short: "Manage per-form CiviCRM integration settings",
	}
	cmd.AddCommand(newFormsListCmd())
	cmd.AddCommand(newFormsShowCmd())
	cmd.AddCommand(newFormsSetCmd())
	cmd.AddCommand(newFormsExportCmd())
	cmd.AddCommand(newFormsImportCmd())
	return cmd
}

func newFormsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List forms with stored integration settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()

			core, err := newCore(ctx)
			if err != nil {
				return err
			}
			defer core.Shutdown()

			forms, err := core.Store.ListForms(ctx)
			if err != nil {
				return err
			}
			renderForms(os.Stdout, forms)
			return nil
		},
	}
}

func renderForms(w io.Writer, forms []bridge.FormSettings) {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Form", "Enabled", "Action", "Mapped Fields", "Updated"})
	for _, fs := range forms {
		updated := "-"
		if !fs.UpdatedAt.IsZero() {
			updated = fs.UpdatedAt.Format("2006-01-02 15:04:05")
		}
		table.Append([]string{
			fs.FormID.String(),
			strconv.FormatBool(fs.Enabled),
			fs.Action,
			strconv.Itoa(len(bridge.ParseFieldMapping(fs.FieldMapping))),
			updated,
		})
	}
	table.Render()
}

func newFormsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show FORM_ID",
		Short: "Show a form's panel, with defaults for unconfigured forms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formID, err := bridge.ParseFormID(args[0])
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

			view, err := core.Panel.Load(ctx, formID)
			if err != nil {
				return err
			}
			printJSON("form_id", view.FormID)
			printJSON("stored", view.Stored)
			printJSON("enabled", view.Enabled)
			printJSON("action", view.Action)
			printJSON("required_fields", view.RequiredFields)
			fmt.Printf("field_mapping:\n%s\n", view.FieldMapping)
			return nil
		},
	}
}

func newFormsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set FORM_ID",
		Short: "Save a form's integration settings",
		Args:  cobra.ExactArgs(1),
		RunE:  runFormsSet,
	}
	cmd.Flags().BoolVar(&formEnabled, "enabled", false, "Enable the integration for this form")
	cmd.Flags().StringVar(&formAction, "action", bridge.DefaultAction, "CiviCRM action as Entity.operation")
	cmd.Flags().StringVar(&formMapping, "mapping", "", "Field mapping lines (form_field = civicrm_field)")
	cmd.Flags().StringVar(&formMappingFile, "mapping-file", "", "Path to a file with field mapping lines")
	return cmd
}

func runFormsSet(cmd *cobra.Command, args []string) error {
	formID, err := bridge.ParseFormID(args[0])
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

	current, err := core.Panel.Load(ctx, formID)
	if err != nil {
		return err
	}
	input := bridge.PanelInput{Enabled: current.Enabled, Action: current.Action, FieldMapping: current.FieldMapping}
	if cmd.Flags().Changed("enabled") {
		input.Enabled = formEnabled
	}
	if cmd.Flags().Changed("action") {
		input.Action = formAction
	}
	switch {
	case formMappingFile != "":
		data, err := os.ReadFile(formMappingFile)
		if err != nil {
			return err
		}
		input.FieldMapping = string(data)
	case cmd.Flags().Changed("mapping"):
		input.FieldMapping = formMapping
	}

	saved, err := core.Panel.Save(ctx, formID, input)
	if err != nil {
		return err
	}
	printJSON("form_id", saved.FormID)
	printJSON("enabled", saved.Enabled)
	printJSON("action", saved.Action)
	return nil
}

func newFormsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every form's settings as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()

			core, err := newCore(ctx)
			if err != nil {
				return err
			}
			defer core.Shutdown()

			forms, err := core.Store.ListForms(ctx)
			if err != nil {
				return err
			}

			out := io.Writer(os.Stdout)
			if formsFile != "" {
				f, err := os.Create(formsFile)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return encodeForms(out, forms)
		},
	}
	cmd.Flags().StringVar(&formsFile, "out", "", "Output file (default stdout)")
	return cmd
}

func newFormsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Save form settings from a YAML export",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(formsFile)
			if err != nil {
				return err
			}
			defer f.Close()

			entries, err := decodeForms(f)
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

			for _, entry := range entries {
				if _, err := core.Panel.Save(ctx, bridge.FormID(entry.FormID), entry.PanelInput); err != nil {
					return fmt.Errorf("form %d: %w", entry.FormID, err)
				}
			}
			printJSON("imported", len(entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&formsFile, "file", "", "YAML file produced by forms export")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func encodeForms(w io.Writer, forms []bridge.FormSettings) error {
	doc := formsDocument{Forms: make([]formEntry, 0, len(forms))}
	for _, fs := range forms {
		doc.Forms = append(doc.Forms, formEntry{
			FormID: uint64(fs.FormID),
			PanelInput: bridge.PanelInput{
				Enabled:      fs.Enabled,
				Action:       fs.Action,
				FieldMapping: fs.FieldMapping,
			},
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func decodeForms(r io.Reader) ([]formEntry, error) {
	var doc formsDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode forms: %w", err)
	}
	for _, entry := range doc.Forms {
		if entry.FormID == 0 {
			return nil, fmt.Errorf("%w: form_id is required", bridge.ErrInvalidFormID)
		}
	}
	return doc.Forms, nil
}
