// Package capture owns the platform audio resources for one recording
// session: the system-output tap, the microphone feed, and the session
// lifecycle state machine tying them to the output file.
package capture

import "errors"

var (
	// ErrPermissionDenied indicates the platform refused capture access.
	// Fatal to session start; recoverable only by user action.
	ErrPermissionDenied = errors.New("audio capture permission denied")

	// ErrDeviceUnavailable indicates platform resource creation failed.
	ErrDeviceUnavailable = errors.New("audio capture device unavailable")

	// ErrWriteTargetUnavailable indicates the output file could not be
	// created in the requested directory.
	ErrWriteTargetUnavailable = errors.New("capture output target unavailable")
)
