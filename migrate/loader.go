/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Catalog is the ordered result of discovering one track directory.
type Catalog struct {
	Track      string
	Dir        string
	Migrations []Migration
}

// Discover scans dir (non-recursively) for migration units belonging to the
// given track and returns them ordered ascending by timestamp, ties broken by
// filename.
//
// The track is an explicit parameter derived once at the directory boundary;
// a unit naming any other track makes the whole directory a DiscoveryError.
// Discovery is fail-closed: one malformed filename aborts the scan, nothing
// is silently skipped. An existing directory with zero matching files yields
// an empty (valid) catalog.
func Discover(dir, track string) (*Catalog, error) {
	if err := ValidateTrack(track); err != nil {
		return nil, &DiscoveryError{Dir: dir, Err: err}
	}

	fi, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &DirectoryNotFoundError{Dir: dir}
	}
	if err != nil {
		return nil, &DiscoveryError{Dir: dir, Err: err}
	}
	if !fi.IsDir() {
		return nil, &DirectoryNotFoundError{Dir: dir}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &DiscoveryError{Dir: dir, Err: err}
	}

	var migrations []Migration
	validations := make(map[string]string) // payload base name -> artifact path
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, SQLExt) && !strings.HasSuffix(name, ValidationExt) {
			continue
		}

		pn, parseErr := ParseFilename(name)
		if parseErr != nil {
			return nil, &DiscoveryError{Dir: dir, Err: parseErr}
		}
		if !ValidateTimestamp(pn.Timestamp) {
			return nil, &DiscoveryError{Dir: dir, Err: &MalformedNameError{
				Filename: name,
				Reason:   "timestamp must be exactly 14 digits",
			}}
		}
		if pn.Track != track {
			return nil, &DiscoveryError{Dir: dir, Err: fmt.Errorf(
				"unit %s belongs to track %q, directory is for track %q", name, pn.Track, track)}
		}

		path := filepath.Join(dir, name)
		switch pn.Kind {
		case KindSQL:
			payload, readErr := os.ReadFile(path)
			if readErr != nil {
				return nil, &DiscoveryError{Dir: dir, Err: fmt.Errorf("read unit %s: %w", name, readErr)}
			}
			migrations = append(migrations, Migration{
				Filename:    name,
				Timestamp:   pn.Timestamp,
				Track:       pn.Track,
				Description: pn.Description,
				SQL:         string(payload),
				Path:        path,
			})
		case KindValidation:
			validations[strings.TrimSuffix(name, ValidationExt)] = path
		}
	}

	for i := range migrations {
		base := strings.TrimSuffix(migrations[i].Filename, SQLExt)
		if path, ok := validations[base]; ok {
			migrations[i].ValidationPath = path
			delete(validations, base)
		}
	}
	// An artifact with no payload to guard is a corrupt source.
	for base := range validations {
		return nil, &DiscoveryError{Dir: dir, Err: fmt.Errorf(
			"validation artifact %s%s has no paired %s payload", base, ValidationExt, SQLExt)}
	}

	sort.SliceStable(migrations, func(i, j int) bool {
		if migrations[i].Timestamp != migrations[j].Timestamp {
			return migrations[i].Timestamp < migrations[j].Timestamp
		}
		return migrations[i].Filename < migrations[j].Filename
	})

	return &Catalog{Track: track, Dir: dir, Migrations: migrations}, nil
}
