package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"ambimix/store"
)

// SeedYAML is the built-in catalog shipped with the binary.
//
//go:embed seed.yaml
var SeedYAML []byte

// DefaultSeeds parses the embedded seed.
func DefaultSeeds() ([]store.Seed, error) {
	seeds, err := store.LoadSeeds(bytes.NewReader(SeedYAML))
	if err != nil {
		return nil, fmt.Errorf("embedded seed: %w", err)
	}
	return seeds, nil
}

// LoadSeeds reads seeds from path, or the embedded seed when path is empty.
func LoadSeeds(path string) ([]store.Seed, error) {
	if path == "" {
		return DefaultSeeds()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file %s: %w", path, err)
	}
	defer file.Close()

	seeds, err := store.LoadSeeds(file)
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return seeds, nil
}
