/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"sort"
)

// CoreTrack is ordered before all other tracks whenever multiple tracks are
// processed in one invocation.
const CoreTrack = "core"

// Plan returns the catalog units whose filenames are absent from the applied
// set, preserving the catalog (discovery) ordering. An empty plan is a
// normal, reportable state, not a failure.
//
// Plan is idempotent: planning a catalog against the applied set extended by
// a previous plan's units yields nothing.
func Plan(catalog []Migration, applied map[string]struct{}) []Migration {
	var pending []Migration
	for _, m := range catalog {
		if _, ok := applied[m.Filename]; ok {
			continue
		}
		pending = append(pending, m)
	}
	return pending
}

// SortTracks orders track names for cross-track execution: CoreTrack first,
// the remaining tracks alphabetically.
func SortTracks(tracks []string) {
	sort.Slice(tracks, func(i, j int) bool {
		return trackLess(tracks[i], tracks[j])
	})
}

func trackLess(a, b string) bool {
	if a == CoreTrack {
		return b != CoreTrack
	}
	if b == CoreTrack {
		return false
	}
	return a < b
}

// MergePlans concatenates per-track pending sets in track order. Units from
// different tracks are never interleaved by timestamp; each track keeps its
// own internal ordering.
func MergePlans(byTrack map[string][]Migration) []Migration {
	tracks := make([]string, 0, len(byTrack))
	for track := range byTrack {
		tracks = append(tracks, track)
	}
	SortTracks(tracks)

	var merged []Migration
	for _, track := range tracks {
		merged = append(merged, byTrack[track]...)
	}
	return merged
}
