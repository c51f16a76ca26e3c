package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oarkflow/date"

	"github.com/oarkflow/migrator/dialect"
	"github.com/oarkflow/migrator/dsl"
	"github.com/oarkflow/migrator/engine"
	"github.com/oarkflow/migrator/schema"
)

// FSResolver implements engine.Resolver by scanning Dir for
// `V<version>__<description>.sql`/`.bcl`, `R__<description>.sql`/`.bcl`
// and timestamp-prefixed `<digits>_<description>.sql`/`.bcl` files,
// covering both script kinds and repeatable migrations.
type FSResolver struct {
	Dir     string
	Dialect dialect.Dialect
	// Logger receives a Debug event per timestamp-prefixed script
	// resolved, carrying the decoded timestamp purely for diagnostics;
	// nil disables it.
	Logger engine.Logger
}

// New returns an FSResolver reading migration scripts from dir and
// compiling DSL scripts against d.
func New(dir string, d dialect.Dialect) *FSResolver {
	return &FSResolver{Dir: dir, Dialect: d, Logger: engine.NoopLogger{}}
}

// Resolve implements engine.Resolver.
func (r *FSResolver) Resolve(ctx context.Context) ([]schema.ResolvedMigration, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolver: reading %s: %w", r.Dir, err)
	}

	type candidate struct {
		parsed parsedName
		path   string
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := validateDirEntry(e.Name()); err != nil {
			return nil, err
		}
		parsed, ok := parseFilename(e.Name())
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{parsed: parsed, path: filepath.Join(r.Dir, e.Name())})
	}

	// Sort by path so the output order is deterministic. The comparison
	// is lexicographic (V10__ sorts before V2__); version order is
	// established by MigrationVersion.Compare in the engine, not here.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].path < candidates[j].path })

	out := make([]schema.ResolvedMigration, 0, len(candidates))
	for _, c := range candidates {
		rm, err := r.resolveOne(c.parsed, c.path)
		if err != nil {
			return nil, fmt.Errorf("resolver: %s: %w", c.path, err)
		}
		out = append(out, rm)
	}
	return out, nil
}

func (r *FSResolver) logger() engine.Logger {
	if r.Logger == nil {
		return engine.NoopLogger{}
	}
	return r.Logger
}

func (r *FSResolver) resolveOne(p parsedName, path string) (schema.ResolvedMigration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return schema.ResolvedMigration{}, err
	}
	script := string(raw)
	crc, digest := checksum(script)

	rm := schema.ResolvedMigration{
		Versioned:   p.versioned,
		Description: p.description,
		Script:      path,
		Checksum:    &crc,
		Digest:      digest,
	}
	if p.versioned {
		v, err := schema.NewVersion(p.version)
		if err != nil {
			return schema.ResolvedMigration{}, fmt.Errorf("invalid version %q: %w", p.version, err)
		}
		rm.Version = v
		if len(p.version) >= 8 {
			if ts := descriptiveTimestamp(p.version); !ts.IsZero() {
				r.logger().Debug("resolved timestamp-prefixed migration", map[string]any{
					"script": path, "timestamp": ts,
				})
			}
		}
	}

	switch p.kind {
	case kindSQL:
		rm.Type = schema.TypeSQL
		exec, err := newSQLExecutor(r.Dialect, script)
		if err != nil {
			return schema.ResolvedMigration{}, err
		}
		rm.Executor = exec
	case kindDSL:
		rm.Type = schema.TypeProcedural
		cfg, err := dsl.Parse(raw)
		if err != nil {
			return schema.ResolvedMigration{}, err
		}
		mig, err := cfg.First()
		if err != nil {
			return schema.ResolvedMigration{}, err
		}
		rm.Executor = dsl.NewExecutor(r.Dialect, mig, true)
	}
	return rm, nil
}

// descriptiveTimestamp best-effort parses the digit version of a
// timestamp-prefixed script (e.g. "20240102150405") for logging purposes
// only; version ordering itself always uses MigrationVersion's numeric
// compare, never this. Returns the zero time if stem isn't a timestamp.
func descriptiveTimestamp(stem string) time.Time {
	t, err := date.Parse(stem)
	if err != nil {
		return time.Time{}
	}
	return t
}
