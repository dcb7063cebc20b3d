package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harkaudio/hark/internal/audio"
	"github.com/harkaudio/hark/internal/capture"
)

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List system capture sources and microphone devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			sources, err := capture.ListSources()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			} else {
				fmt.Fprintln(out, "system sources:")
				for _, source := range sources {
					defaultMark := " "
					if source.Default {
						defaultMark = "*"
					}
					kind := "input"
					if source.Monitor {
						kind = "monitor"
					}
					fmt.Fprintf(out, "%s %s | %s | %s\n", defaultMark, source.ID, kind, source.Description)
				}
			}

			devices, err := audio.ListInputDevices()
			if err != nil {
				return err
			}
			if len(devices) == 0 && len(sources) == 0 {
				return fmt.Errorf("no input devices found")
			}

			fmt.Fprintln(out, "microphones:")
			for _, device := range devices {
				defaultMark := " "
				if device.Default {
					defaultMark = "*"
				}
				fmt.Fprintf(out, "%s %s | channels=%d | rate=%.0f\n",
					defaultMark, device.Name, device.Channels, device.DefaultRate)
			}
			return nil
		},
	}
}
