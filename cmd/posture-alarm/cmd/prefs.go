package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/posture-alarm/internal/config"
	"github.com/oshokin/posture-alarm/internal/repository/preferences"
)

// prefsPath scopes preference reads and writes.
//
//nolint:gochecknoglobals // Cobra flags are package-level by convention.
var prefsPath string

//nolint:gochecknoglobals // Cobra commands are package-level by convention.
var (
	prefsCmd = &cobra.Command{
		Use:   "prefs",
		Short: "Read or save preferences such as the notification destination.",
		Long: `Reads or saves preferences in the configured store.

Well-known keys:
  destination   phone number that receives relapse notifications
  display_name  name used in the notification message`,
	}

	prefsGetCmd = &cobra.Command{
		Use:   "get <key>",
		Short: "Print a saved preference.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPreferences()
			if err != nil {
				return err
			}

			defer store.Close()

			value, ok, err := store.Get(cmd.Context(), args[0], preferences.WithPath(prefsPath))
			if err != nil {
				return err
			}

			if !ok {
				return fmt.Errorf("%w: %s", preferences.ErrNotFound, args[0])
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), value)

			return err
		},
	}

	prefsSetCmd = &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Save a preference.",
		Args:  cobra.ExactArgs(2), //nolint:mnd // Key and value.
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openPreferences()
			if err != nil {
				return err
			}

			defer store.Close()

			return store.Set(cmd.Context(), args[0], args[1], preferences.WithPath(prefsPath))
		},
	}
)

func openPreferences() (preferences.Store, error) { //nolint:ireturn // Backend is chosen by settings.
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	return preferences.Open(settings.Preferences.Backend, settings.Preferences.Path)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	prefsCmd.PersistentFlags().StringVar(&prefsPath, "path", preferences.DefaultPath, "preference scope")
	prefsCmd.AddCommand(prefsGetCmd, prefsSetCmd)
}
