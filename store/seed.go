package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Seed is a built-in track definition.
type Seed struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	URL    string `yaml:"url"`
}

type seedFile struct {
	Tracks []Seed `yaml:"tracks"`
}

// LoadSeeds parses a YAML seed document. Every entry needs a name and
// either a source reference or a URL.
func LoadSeeds(r io.Reader) ([]Seed, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	for i, s := range f.Tracks {
		if s.Name == "" {
			return nil, fmt.Errorf("seed track %d: name is required", i)
		}
		if s.Source == "" && s.URL == "" {
			return nil, fmt.Errorf("seed track %q: source or url is required", s.Name)
		}
	}
	return f.Tracks, nil
}

// Seed inserts built-in tracks whose source is not in the catalog yet and
// returns how many were added. Seeds without a resolved Source are skipped.
func (d *DB) Seed(ctx context.Context, seeds []Seed) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	added := 0
	base := time.Now()
	for i, s := range seeds {
		if s.Source == "" {
			d.logger.Warn("Skipping unresolved seed", slog.String("name", s.Name), slog.String("url", s.URL))
			continue
		}

		var exists int
		if err := d.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tracks WHERE builtin = 1 AND source_ref = ?`, s.Source).Scan(&exists); err != nil {
			return added, fmt.Errorf("check seed %q: %w", s.Name, err)
		}
		if exists > 0 {
			d.logger.Debug("Seed already present", slog.String("name", s.Name))
			continue
		}

		_, err := d.db.ExecContext(ctx, `
			INSERT INTO tracks (id, name, source_ref, builtin, owner_id, created_at)
			VALUES (?, ?, ?, 1, '', ?)`,
			uuid.NewString(), s.Name, s.Source, base.Add(time.Duration(i)).UnixNano())
		if err != nil {
			return added, fmt.Errorf("insert seed %q: %w", s.Name, err)
		}
		added++
		d.logger.Info("Seeded built-in track", slog.String("name", s.Name))
	}
	return added, nil
}

// ResolveSeeds fills in Source from URL through resolve for seeds that
// only carry a URL. Unresolvable seeds keep an empty Source.
func ResolveSeeds(seeds []Seed, resolve func(raw string) (string, bool)) []Seed {
	out := make([]Seed, len(seeds))
	for i, s := range seeds {
		if s.Source == "" && s.URL != "" {
			if ref, ok := resolve(s.URL); ok {
				s.Source = ref
			}
		}
		out[i] = s
	}
	return out
}
