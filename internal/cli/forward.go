package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harkaudio/hark/internal/ipc"
)

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the active recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return forwardOrFail(cmd, "stop")
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print recorder state, audio level, and elapsed time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			socketPath, err := ipc.RuntimeSocketPath()
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "idle")
				return nil
			}

			resp, handled, err := tryForward(cmd.Context(), socketPath, "status")
			if !handled || err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "idle")
				return nil
			}

			state := resp.State
			if state == "" {
				state = "idle"
			}
			if state == "running" {
				elapsed := (time.Duration(resp.DurationMS) * time.Millisecond).Round(time.Second)
				fmt.Fprintf(cmd.OutOrStdout(), "%s  level=%.2f  elapsed=%s\n", state, resp.Level, elapsed)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), state)
			return nil
		},
	}
}

func newTranscriptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transcript",
		Short: "Print the live transcript of the active recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			socketPath, err := ipc.RuntimeSocketPath()
			if err != nil {
				return err
			}

			resp, handled, err := tryForward(cmd.Context(), socketPath, "transcript")
			if !handled {
				return errors.New("no active recording")
			}
			if err != nil {
				return err
			}
			if strings.TrimSpace(resp.Transcript) == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "no transcript yet")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Transcript)
			return nil
		},
	}
}

// forwardOrFail sends one command to the running recorder and fails when
// none is up.
func forwardOrFail(cmd *cobra.Command, command string) error {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return err
	}

	resp, handled, err := tryForward(cmd.Context(), socketPath, command)
	if !handled {
		return errors.New("no active recording")
	}
	if err != nil {
		return err
	}
	if resp.Message != "" {
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	}
	return nil
}

// tryForward attempts one IPC round trip. handled=false means no recorder
// is listening; a missing or orphaned socket is not an error.
func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if ipc.IsRecorderDown(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}
