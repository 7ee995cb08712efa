package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// lockboxErrorsCmd lists or dismisses recorded form filling failures.
var lockboxErrorsCmd = &cobra.Command{
	Use:   "lockbox-errors",
	Short: "List or dismiss lockbox form filling errors",
	Long: `List the errors the backend recorded while filling attendance forms for
your account, or dismiss one with --delete.

Example:
  fenetre lockbox-errors -c config.yaml
  fenetre lockbox-errors -c config.yaml --delete 5f1c2e`,
	RunE: runLockboxErrors,
}

func init() {
	rootCmd.AddCommand(lockboxErrorsCmd)

	lockboxErrorsCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	lockboxErrorsCmd.Flags().String("delete", "", "dismiss the error with this id")
	_ = lockboxErrorsCmd.MarkFlagRequired("config")
}

func runLockboxErrors(cmd *cobra.Command, args []string) error {
	app, _, err := newApp(cmd, newLogger())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if id, _ := cmd.Flags().GetString("delete"); id != "" {
		if err := app.DeleteLockboxError(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to dismiss error %s: %w", id, err)
		}
		fmt.Fprintf(out, "Dismissed %s\n", id)
		return nil
	}

	errs, err := app.LockboxErrors(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list lockbox errors: %w", err)
	}

	if len(errs) == 0 {
		fmt.Fprintln(out, dimStyle.Render("No lockbox errors."))
		return nil
	}
	for _, e := range errs {
		fmt.Fprintf(out, "%s  %s  %s: %s\n",
			dimStyle.Render(e.ID), e.TimeLogged, boldStyle.Render(e.Kind), e.Message)
	}
	return nil
}
