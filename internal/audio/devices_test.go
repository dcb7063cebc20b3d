package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchDeviceDefaultTermPicksDefault(t *testing.T) {
	devices := []Device{
		{Name: "USB Conference Mic", Channels: 1},
		{Name: "Built-in Audio Analog Stereo", Channels: 2, Default: true},
	}

	for _, term := range []string{"", "default", "  DEFAULT  "} {
		dev, err := MatchDevice(devices, term)
		require.NoError(t, err)
		require.Equal(t, "Built-in Audio Analog Stereo", dev.Name)
	}
}

func TestMatchDeviceSubstringCaseInsensitive(t *testing.T) {
	devices := []Device{
		{Name: "Built-in Audio", Default: true},
		{Name: "Blue Yeti Stereo Microphone"},
	}

	dev, err := MatchDevice(devices, "yeti")
	require.NoError(t, err)
	require.Equal(t, "Blue Yeti Stereo Microphone", dev.Name)
}

func TestMatchDeviceNoMatch(t *testing.T) {
	devices := []Device{{Name: "Built-in Audio", Default: true}}

	_, err := MatchDevice(devices, "snowball")
	require.Error(t, err)
	require.Contains(t, err.Error(), "snowball")
}

func TestMatchDeviceNoDefaultAvailable(t *testing.T) {
	_, err := MatchDevice([]Device{{Name: "Mic"}}, "")
	require.Error(t, err)
}
