package dsl

import (
	"fmt"

	"github.com/oarkflow/bcl"
)

// Parse decodes a .bcl migration file's contents into a Config. A file
// conventionally declares exactly one Migration block (the resolver names
// migration files after their version/description, same as a .sql file),
// but the underlying format allows more than one.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if _, err := bcl.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("dsl: %w", err)
	}
	return cfg, nil
}

// First returns cfg's sole Migration, erroring if the file declared zero
// or more than one — the shape the resolver expects from a single
// migration file.
func (cfg Config) First() (Migration, error) {
	switch len(cfg.Migrations) {
	case 0:
		return Migration{}, fmt.Errorf("dsl: no Migration block found")
	case 1:
		return cfg.Migrations[0], nil
	default:
		return Migration{}, fmt.Errorf("dsl: expected exactly one Migration block, got %d", len(cfg.Migrations))
	}
}
