package capture

import (
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Source describes one Pulse source. Monitor sources are what the system
// tap records from.
type Source struct {
	ID          string
	Description string
	Monitor     bool
	Default     bool
}

// ListSources returns the sound server's sources with monitor/default
// metadata, for the devices listing.
func ListSources() ([]Source, error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("hark"))
	if err != nil {
		return nil, fmt.Errorf("connect sound server: %w", err)
	}
	defer client.Close()

	var defaultID string
	if defaultSource, derr := client.DefaultSource(); derr == nil {
		defaultID = defaultSource.ID()
	}

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	sources := make([]Source, 0, len(sourceInfos))
	for _, info := range sourceInfos {
		if info == nil {
			continue
		}
		sources = append(sources, Source{
			ID:          info.SourceName,
			Description: info.Device,
			Monitor:     strings.HasSuffix(info.SourceName, ".monitor"),
			Default:     info.SourceName == defaultID,
		})
	}
	return sources, nil
}
