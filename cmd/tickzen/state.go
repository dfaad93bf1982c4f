package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/tickzen/internal/app"
)

var (
	stateUser    string
	stateProfile string
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset a profile's publishing state",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a profile's publishing state as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.NewApp(configPath)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		defer a.Close()

		st, err := a.ProfileState(cmd.Context(), stateUser, stateProfile)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

var stateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete a profile's publishing state, including its published log",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.NewApp(configPath)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		defer a.Close()

		if err := a.ResetProfile(cmd.Context(), stateUser, stateProfile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "State reset for %s/%s\n", stateUser, stateProfile)
		return nil
	},
}

func init() {
	stateCmd.PersistentFlags().StringVarP(&stateUser, "user", "u", "", "Configured user id")
	stateCmd.PersistentFlags().StringVarP(&stateProfile, "profile", "p", "", "Profile id")
	stateCmd.MarkPersistentFlagRequired("user")
	stateCmd.MarkPersistentFlagRequired("profile")

	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateResetCmd)
}
