package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harkaudio/hark/internal/audio"
	"github.com/harkaudio/hark/internal/capture"
	"github.com/harkaudio/hark/internal/config"
	"github.com/harkaudio/hark/internal/ipc"
	"github.com/harkaudio/hark/internal/session"
	"github.com/harkaudio/hark/internal/streaming"
	"github.com/harkaudio/hark/internal/transcribe"
)

func newRecordCommand(configPath *string) *cobra.Command {
	var micFlag string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Start recording; stops the active recording when one is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}
			cfg := loaded.Config
			if micFlag != "" {
				cfg.Audio.Microphone = micFlag
			}

			logger, closeLog := setupLogger(cmd)
			defer closeLog()

			return runRecord(cmd, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&micFlag, "mic", "", "microphone device name substring, or \"off\"")
	return cmd
}

// runRecord owns the recording daemon: it acquires the runtime socket,
// serves IPC beside the recorder, and prints the transcript at stop. When
// another recording is already running it forwards a stop instead, so a
// bound hotkey can toggle.
func runRecord(cmd *cobra.Command, cfg config.Config, logger *slog.Logger) error {
	ctx := cmd.Context()

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return err
	}

	if resp, handled, err := tryForward(ctx, socketPath, "stop"); handled {
		if err != nil {
			return err
		}
		if resp.Message != "" {
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		}
		return nil
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, logger)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			resp, _, forwardErr := tryForward(ctx, socketPath, "stop")
			if forwardErr != nil {
				return forwardErr
			}
			if resp.Message != "" {
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			}
			return nil
		}
		return err
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	recorder := session.NewRecorder(logger, recorderConfig(cfg))

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	server := &ipc.Server{
		Handler: recorder,
		State:   func() string { return string(recorder.State()) },
		Logger:  logger,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Serve(serverCtx, listener)
	}()

	result := recorder.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		return fmt.Errorf("ipc server failed: %w", serverErr)
	}

	logRecordingResult(logger, result)

	if result.Err != nil {
		return result.Err
	}
	if text := strings.TrimSpace(result.Transcript.FullText); text != "" {
		fmt.Fprintln(cmd.OutOrStdout(), text)
	}
	if result.Audio.AudioPath != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "saved %s\n", result.Audio.Directory)
	}
	return nil
}

// recorderConfig maps file configuration onto the recorder wiring.
func recorderConfig(cfg config.Config) session.Config {
	vadMode := cfg.VAD.Mode
	if !cfg.VAD.Enable {
		vadMode = -1
	}

	return session.Config{
		OutputDir: cfg.OutputDir,
		Capture: capture.Config{
			System: audio.Format{
				SampleRate:    float64(cfg.Audio.SampleRate),
				Channels:      cfg.Audio.Channels,
				BitsPerSample: 16,
			},
			Microphone: cfg.Audio.Microphone,
			MicBuffer:  cfg.Audio.MicBuffer(),
		},
		Whisper: transcribe.Config{
			BinaryPath: cfg.Whisper.Binary,
			ModelPath:  cfg.Whisper.Model,
			Language:   cfg.Whisper.Language,
		},
		Streaming: streaming.Config{
			TickInterval: cfg.Streaming.Tick(),
			Window:       cfg.Streaming.Window(),
			Tolerance:    cfg.Streaming.Tolerance(),
			MinAudio:     cfg.Streaming.MinAudio(),
		},
		VADMode: vadMode,
	}
}

func logRecordingResult(logger *slog.Logger, result session.Result) {
	fields := []any{
		"id", result.Audio.ID.String(),
		"directory", result.Audio.Directory,
		"started_at", result.Audio.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"audio_duration_ms", result.Audio.Duration.Milliseconds(),
		"segments", len(result.Transcript.Segments),
		"streamed", result.Streamed,
	}

	if result.Err != nil {
		logger.Error("recording failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("recording complete", fields...)
}
