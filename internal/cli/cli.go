// Package cli builds the hark command tree and wires commands to the
// recorder, the IPC socket, and the diagnostic surfaces.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/harkaudio/hark/internal/config"
	"github.com/harkaudio/hark/internal/doctor"
	"github.com/harkaudio/hark/internal/logging"
	"github.com/harkaudio/hark/internal/version"
)

// Root assembles the full command tree. stdout/stderr are injectable so
// tests can capture output.
func Root(stdout, stderr io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "hark",
		Short:         "Record meeting audio and transcribe it locally",
		Long:          "hark records system audio mixed with your microphone and produces a live, locally generated transcript. Audio never leaves the machine.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/hark/config.toml)")
	root.PersistentFlags().Bool("debug", false, "log per-command and per-window detail")

	root.AddCommand(
		newRecordCommand(&configPath),
		newStopCommand(),
		newStatusCommand(),
		newTranscriptCommand(),
		newDevicesCommand(),
		newDoctorCommand(&configPath),
		newVersionCommand(),
	)

	return root
}

// loadConfig resolves the runtime configuration and surfaces warnings on
// the command's error stream.
func loadConfig(cmd *cobra.Command, configPath string) (config.Loaded, error) {
	loaded, err := config.Load(configPath)
	if err != nil {
		return config.Loaded{}, err
	}
	for _, warning := range loaded.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning.Message)
	}
	return loaded, nil
}

// setupLogger opens the JSONL log file, falling back to a silent logger so
// a broken log path never blocks recording.
func setupLogger(cmd *cobra.Command) (*slog.Logger, func()) {
	debug, _ := cmd.Flags().GetBool("debug")
	runtime, err := logging.New(debug)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: setup logging: %v\n", err)
		return slog.New(slog.DiscardHandler), func() {}
	}
	return runtime.Logger, func() { _ = runtime.Close() }
}

func newDoctorCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run configuration and environment checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}

			report := doctor.Run(loaded)
			fmt.Fprintln(cmd.OutOrStdout(), report.String())
			if !report.OK() {
				return fmt.Errorf("%d check(s) failed", failedChecks(report))
			}
			return nil
		},
	}
}

func failedChecks(report doctor.Report) int {
	n := 0
	for _, check := range report.Checks {
		if !check.Pass {
			n++
		}
	}
	return n
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
