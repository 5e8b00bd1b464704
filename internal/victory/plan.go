package victory

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// BatchDir is the directory under the plan root that holds batch files.
	BatchDir = ".vbatches"
	// BatchExt is the file extension of a persisted batch.
	BatchExt = ".vbak_batch"
	// ManifestExt is the file extension of a plan manifest.
	ManifestExt = ".yaml"
)

// BackupPlan binds the capabilities and the ordered batch ledger of one
// backup job.
//
// Batches is append-only during discovery and is the only record of what
// discovery produced. Replay uses Sources[0] and Destinations[0]; further
// entries are kept and persisted but not used for copying.
type BackupPlan struct {
	Name         string
	Path         string
	Sources      []Destination
	Destinations []Destination
	Batches      []string

	logger Logger
	clock  Clock
}

// NewBackupPlan creates an empty plan. A nil logger discards output.
func NewBackupPlan(name string, logger Logger) *BackupPlan {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &BackupPlan{
		Name:    name,
		Batches: []string{},
		logger:  logger,
		clock:   RealClock{},
	}
}

// AddSource appends a source backend.
func (p *BackupPlan) AddSource(src Destination) {
	p.Sources = append(p.Sources, src)
}

// AddDestination appends a destination backend.
func (p *BackupPlan) AddDestination(dst Destination) {
	p.Destinations = append(p.Destinations, dst)
}

// BatchPath returns where the named batch is persisted under the plan root.
func (p *BackupPlan) BatchPath(batchName string) string {
	return filepath.Join(p.Path, BatchDir, batchName+BatchExt)
}

// ManifestPath returns the manifest location for a plan saved to dir.
func ManifestPath(dir, planName string) string {
	return filepath.Join(dir, planName+ManifestExt)
}

// appendBatch records a batch name in the ledger. All ledger writes go
// through here.
func (p *BackupPlan) appendBatch(name string) {
	p.Batches = append(p.Batches, name)
}

// ResetLedger empties the ledger and removes the batch files of earlier
// discoveries under the plan root.
func (p *BackupPlan) ResetLedger() error {
	p.Batches = []string{}
	if p.Path == "" {
		return nil
	}
	if err := os.RemoveAll(filepath.Join(p.Path, BatchDir)); err != nil {
		return fmt.Errorf("removing batch files of plan %s: %w", p.Name, err)
	}
	return nil
}

// Discover enumerates every source into persisted batches of up to batchSize
// records and appends their names to the ledger.
func (p *BackupPlan) Discover(batchSize int) error {
	_, err := NewExecutor(p.logger, p.clock).Discover(p, batchSize)
	return err
}

// Run replays every batch in the ledger, copying content from the first
// source to the first destination.
func (p *BackupPlan) Run() error {
	_, err := NewExecutor(p.logger, p.clock).Run(p)
	return err
}

// ProcessBatch replays a single batch by name.
func (p *BackupPlan) ProcessBatch(batchName string) error {
	_, err := NewExecutor(p.logger, p.clock).ProcessBatch(p, batchName)
	return err
}

// SavedPlan is the manifest form of a BackupPlan. Backends are stored as the
// identifiers returned by Destination.Name.
type SavedPlan struct {
	Name         string   `yaml:"name"`
	Path         string   `yaml:"path"`
	Sources      []string `yaml:"sources"`
	Destinations []string `yaml:"destinations"`
	Batches      []string `yaml:"batches"`
}

// Saved returns the manifest form of the plan.
func (p *BackupPlan) Saved() *SavedPlan {
	saved := &SavedPlan{
		Name:         p.Name,
		Path:         p.Path,
		Sources:      make([]string, 0, len(p.Sources)),
		Destinations: make([]string, 0, len(p.Destinations)),
		Batches:      append([]string{}, p.Batches...),
	}
	for _, s := range p.Sources {
		saved.Sources = append(saved.Sources, s.Name())
	}
	for _, d := range p.Destinations {
		saved.Destinations = append(saved.Destinations, d.Name())
	}
	return saved
}

// SavePlan makes dir the plan root and writes the manifest to
// <dir>/<name>.yaml. It returns the manifest path.
func (p *BackupPlan) SavePlan(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating plan directory: %w", err)
	}
	p.Path = dir

	data, err := yaml.Marshal(p.Saved())
	if err != nil {
		return "", fmt.Errorf("encoding plan %s: %w", p.Name, err)
	}

	manifest := ManifestPath(dir, p.Name)
	if err := writeFileAtomic(manifest, data); err != nil {
		return "", fmt.Errorf("saving plan %s: %w", p.Name, err)
	}

	p.logger.Info("plan saved", "plan", p.Name, "path", manifest, "batches", len(p.Batches))
	return manifest, nil
}

// LoadSaved reads a manifest without reconstructing its backends.
func LoadSaved(path string) (*SavedPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan manifest: %w", err)
	}

	var saved SavedPlan
	if err := yaml.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("decoding plan manifest %s: %w", path, err)
	}
	if saved.Name == "" {
		return nil, fmt.Errorf("decoding plan manifest %s: missing plan name", path)
	}
	if saved.Batches == nil {
		saved.Batches = []string{}
	}
	return &saved, nil
}

// FromSaved rebuilds a plan from its manifest, creating a fresh backend for
// every persisted identifier.
func FromSaved(saved *SavedPlan, resolver Resolver, logger Logger) (*BackupPlan, error) {
	p := NewBackupPlan(saved.Name, logger)
	p.Path = saved.Path
	p.Batches = append(p.Batches, saved.Batches...)

	for _, id := range saved.Sources {
		src, err := resolver.Resolve(id)
		if err != nil {
			return nil, fmt.Errorf("resolving source %q: %w", id, err)
		}
		p.AddSource(src)
	}
	for _, id := range saved.Destinations {
		dst, err := resolver.Resolve(id)
		if err != nil {
			return nil, fmt.Errorf("resolving destination %q: %w", id, err)
		}
		p.AddDestination(dst)
	}
	return p, nil
}

// LoadPlan combines LoadSaved and FromSaved.
func LoadPlan(path string, resolver Resolver, logger Logger) (*BackupPlan, error) {
	saved, err := LoadSaved(path)
	if err != nil {
		return nil, err
	}
	return FromSaved(saved, resolver, logger)
}

// SetClock replaces the clock used for timing metrics.
func (p *BackupPlan) SetClock(c Clock) {
	p.clock = c
}
