// Package preprocess adapts externally preprocessed waveform archives to the
// runner's bundle interface.
//
// Cleaning, gap interpolation, filtering and resampling to the goal sampling
// rate all happen upstream; this package only loads the finished per-day
// channel files the preprocessor wrote. A file holds the msgpack-encoded
// contiguous segments of one channel for one day.
package preprocess

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/seismonet/noisecc/internal/log"
	"github.com/seismonet/noisecc/internal/types"
	"github.com/seismonet/noisecc/internal/waveform"
)

// archivedSegment is the on-disk form of one contiguous data run.
type archivedSegment struct {
	Start      int64     `msgpack:"start"` // unix nanoseconds
	SampleRate float64   `msgpack:"sample_rate"`
	Data       []float64 `msgpack:"data"`
}

// ArchiveSource loads one-day waveform bundles from a directory tree laid
// out as <root>/<day>/<net>.<sta>.<loc>.<chan>.mp.
type ArchiveSource struct {
	root   string
	params *types.Params
}

// NewArchiveSource creates a bundle source over the given archive root.
func NewArchiveSource(root string, params *types.Params) *ArchiveSource {
	return &ArchiveSource{root: root, params: params}
}

// GetBundle loads all archived channels of the requested stations and
// components for the day. A missing day directory or missing channels yield
// an empty or partial bundle, not an error.
func (a *ArchiveSource) GetBundle(ctx context.Context, stations []string, components []string, day string) (*waveform.Bundle, error) {
	dayDir := filepath.Join(a.root, day)
	entries, err := os.ReadDir(dayDir)
	if os.IsNotExist(err) {
		return &waveform.Bundle{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive day %s: %w", day, err)
	}

	wanted := make(map[string]bool, len(stations))
	for _, s := range stations {
		wanted[s] = true
	}
	wantedComps := make(map[string]bool, len(components))
	for _, c := range components {
		wantedComps[c] = true
	}

	bundle := &waveform.Bundle{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".mp") {
			continue
		}
		id, ok := parseChannelName(strings.TrimSuffix(name, ".mp"))
		if !ok {
			log.Debugf("skipping unrecognized archive file %s", name)
			continue
		}
		if !wanted[id.NetSta()] || !wantedComps[id.Component()] {
			continue
		}

		channel, err := a.loadChannel(filepath.Join(dayDir, name), id)
		if err != nil {
			return nil, err
		}
		bundle.Channels = append(bundle.Channels, channel)
	}
	return bundle, nil
}

func (a *ArchiveSource) loadChannel(path string, id waveform.ChannelID) (waveform.Channel, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return waveform.Channel{}, fmt.Errorf("read archive %s: %w", path, err)
	}

	var archived []archivedSegment
	if err := msgpack.Unmarshal(blob, &archived); err != nil {
		return waveform.Channel{}, fmt.Errorf("decode archive %s: %w", path, err)
	}

	channel := waveform.Channel{ID: id}
	for _, seg := range archived {
		if seg.SampleRate != a.params.SamplingRate {
			return waveform.Channel{}, fmt.Errorf(
				"archive %s has sampling rate %v, configured goal is %v",
				path, seg.SampleRate, a.params.SamplingRate)
		}
		channel.Segments = append(channel.Segments, waveform.Segment{
			Start:      time.Unix(0, seg.Start).UTC(),
			SampleRate: seg.SampleRate,
			Data:       seg.Data,
		})
	}
	return channel, nil
}

// parseChannelName splits "NET.STA.LOC.CHAN" into a channel id.
func parseChannelName(name string) (waveform.ChannelID, bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 4 {
		return waveform.ChannelID{}, false
	}
	return waveform.ChannelID{
		Network:  parts[0],
		Station:  parts[1],
		Location: parts[2],
		Channel:  parts[3],
	}, true
}
