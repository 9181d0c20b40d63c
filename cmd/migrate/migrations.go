package main

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

// migration is one numbered schema step. Down is empty when the step cannot
// be reverted (extensions stay installed).
type migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// loadMigrations reads NNN_name.sql files and their optional NNN_name.down.sql
// counterparts from fsys, ordered by version.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	byVersion := make(map[int]*migration)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		base := strings.TrimSuffix(name, ".sql")
		down := strings.HasSuffix(base, ".down")
		base = strings.TrimSuffix(base, ".down")

		num, label, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: expected NNN_name.sql", name)
		}
		version, err := strconv.Atoi(num)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: bad version %q", name, num)
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		m, exists := byVersion[version]
		if !exists {
			m = &migration{Version: version, Name: label}
			byVersion[version] = m
		} else if m.Name != label {
			return nil, fmt.Errorf("migration %d: conflicting names %q and %q", version, m.Name, label)
		}
		if down {
			m.Down = string(data)
		} else {
			if m.Up != "" {
				return nil, fmt.Errorf("migration %d: duplicate up file", version)
			}
			m.Up = string(data)
		}
	}

	out := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %03d_%s: down file without up", m.Version, m.Name)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// pending returns the migrations not yet recorded in applied, in order.
func pending(all []migration, applied map[int]bool) []migration {
	var out []migration
	for _, m := range all {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

// latestApplied returns the highest applied migration, or false when none is.
func latestApplied(all []migration, applied map[int]bool) (migration, bool) {
	for i := len(all) - 1; i >= 0; i-- {
		if applied[all[i].Version] {
			return all[i], true
		}
	}
	return migration{}, false
}
