package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/oshokin/posture-alarm/internal/config"
	"github.com/oshokin/posture-alarm/internal/service/common"
)

// statusCmd prints the state of a running session.
//
//nolint:gochecknoglobals // Cobra commands are package-level by convention.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the state of a running monitoring session.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := commandContext(cmd)
		defer stop()

		settings, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}

		client, err := common.Dial(ctx, settings.ServerAddress, common.WithCallTimeout(settings.Timeout))
		if err != nil {
			return err
		}

		defer client.Close()

		state, err := client.GetState(ctx)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), protojson.MarshalOptions{Multiline: true}.Format(state))

		return err
	},
}
