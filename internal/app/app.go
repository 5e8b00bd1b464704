package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"victory-go/internal/config"
	"victory-go/internal/database"
	"victory-go/internal/destination"
	"victory-go/internal/fs"
	"victory-go/internal/model"
	"victory-go/internal/victory"
)

// ErrEphemeralBackend is returned when a saved plan would reference a
// memory:// backend, whose contents are gone once the process exits.
var ErrEphemeralBackend = errors.New("memory:// backends only live for one process")

// Options tune how NewVictoryApp builds its logger.
type Options struct {
	// Stderr receives log lines in addition to the log file. Defaults to os.Stderr.
	Stderr io.Writer
	// Verbose enables debug records.
	Verbose bool
	// IDGenerator produces the run ID. Defaults to random UUIDs.
	IDGenerator victory.IDGenerator
}

// VictoryApp is the application layer between the CLI and the victory core.
// It constructs all dependencies from config, exposes plan operations that
// accept plan names or manifest paths, and records discover and run
// invocations in the history database. The caller must call Close when done.
type VictoryApp struct {
	cfg      *config.Config
	history  victory.History
	resolver *destination.Resolver
	executor *victory.Executor
	logger   victory.Logger
	clock    victory.Clock
	runID    string
	logFile  *os.File
}

// NewVictoryApp creates a fully wired VictoryApp from the given config.
func NewVictoryApp(cfg *config.Config, opts Options) (*VictoryApp, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = victory.UUIDGenerator{}
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	runID := opts.IDGenerator.New()
	sl, logFile, err := newLogger(cfg.LogDir, runID, level, opts.Stderr)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: sl}

	resolver := destination.NewResolver(destination.ResolverOptions{
		Ignore: cfg.Filesystem.Ignore,
		S3:     cfg.S3,
	}, logger)

	a := newVictoryApp(cfg, db, resolver, logger, victory.RealClock{}, runID)
	a.logFile = logFile
	return a, nil
}

func newVictoryApp(cfg *config.Config, history victory.History, resolver *destination.Resolver, logger victory.Logger, clock victory.Clock, runID string) *VictoryApp {
	return &VictoryApp{
		cfg:      cfg,
		history:  history,
		resolver: resolver,
		executor: victory.NewExecutor(logger, clock),
		logger:   logger,
		clock:    clock,
		runID:    runID,
	}
}

// RunID identifies this invocation in log lines and history records.
func (a *VictoryApp) RunID() string {
	return a.runID
}

// ManifestPath maps a plan reference to its manifest. A reference that names
// an existing file or ends in .yaml is used as a path; anything else is a
// plan name under the configured plan directory.
func (a *VictoryApp) ManifestPath(ref string) string {
	if strings.HasSuffix(ref, victory.ManifestExt) {
		return ref
	}
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return ref
	}
	return victory.ManifestPath(filepath.Join(a.cfg.PlanDir, ref), ref)
}

// NewPlan creates a plan from backend identifiers and saves its manifest.
// Filesystem identifiers are made absolute. An empty dir places the plan root
// at <plan_dir>/<name>. Returns the manifest path.
func (a *VictoryApp) NewPlan(name string, sources, destinations []string, dir string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("plan name is required")
	}
	if dir == "" {
		dir = filepath.Join(a.cfg.PlanDir, name)
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving plan directory: %w", err)
	}

	for _, id := range append(append([]string{}, sources...), destinations...) {
		if strings.HasPrefix(id, destination.MemoryScheme) {
			return "", fmt.Errorf("plan %s: %s: %w", name, id, ErrEphemeralBackend)
		}
	}

	p := victory.NewBackupPlan(name, a.logger)
	for _, id := range sources {
		src, err := a.resolve(id)
		if err != nil {
			return "", fmt.Errorf("resolving source: %w", err)
		}
		p.AddSource(src)
	}
	for _, id := range destinations {
		dst, err := a.resolve(id)
		if err != nil {
			return "", fmt.Errorf("resolving destination: %w", err)
		}
		p.AddDestination(dst)
	}

	return p.SavePlan(dir)
}

// ShowPlan reads a manifest without touching its backends.
func (a *VictoryApp) ShowPlan(ref string) (*victory.SavedPlan, error) {
	return victory.LoadSaved(a.ManifestPath(ref))
}

// Discover enumerates a plan's sources into batches and saves the new
// ledger. Batches of an earlier discovery are discarded first.
// batchSize <= 0 uses the configured batch size.
func (a *VictoryApp) Discover(ref string, batchSize int) (*victory.Results, error) {
	if batchSize <= 0 {
		batchSize = a.cfg.EffectiveBatchSize()
	}

	p, err := a.loadPlan(ref)
	if err != nil {
		return nil, err
	}

	return a.track(p.Name, "discover", func() (*victory.Results, error) {
		if err := p.ResetLedger(); err != nil {
			return nil, err
		}
		res, err := a.executor.Discover(p, batchSize)
		if err != nil {
			return nil, err
		}
		if _, err := p.SavePlan(p.Path); err != nil {
			return res, fmt.Errorf("saving ledger: %w", err)
		}
		return res, nil
	})
}

// Run replays every batch of a plan's ledger.
func (a *VictoryApp) Run(ref string) (*victory.Results, error) {
	p, err := a.loadPlan(ref)
	if err != nil {
		return nil, err
	}
	return a.track(p.Name, "run", func() (*victory.Results, error) {
		return a.executor.Run(p)
	})
}

// ProcessBatch replays a single batch of a plan.
func (a *VictoryApp) ProcessBatch(ref, batchName string) (*victory.Results, error) {
	p, err := a.loadPlan(ref)
	if err != nil {
		return nil, err
	}
	return a.track(p.Name, "batch", func() (*victory.Results, error) {
		return a.executor.ProcessBatch(p, batchName)
	})
}

// History returns the most recent recorded operations.
func (a *VictoryApp) History(limit int) ([]*model.Operation, error) {
	return a.history.ListOperations(limit)
}

// GenerateTestTree writes count pattern files of size bytes into dir.
func (a *VictoryApp) GenerateTestTree(dir string, size, count int) error {
	if err := fs.GenerateFolder(dir, size, count); err != nil {
		return err
	}
	a.logger.Info("test tree generated", "dir", dir, "files", count, "size", size)
	return nil
}

// Close closes the history database and the log file.
func (a *VictoryApp) Close() error {
	var firstErr error
	if err := a.history.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}

func (a *VictoryApp) loadPlan(ref string) (*victory.BackupPlan, error) {
	p, err := victory.LoadPlan(a.ManifestPath(ref), a.resolver, a.logger)
	if err != nil {
		return nil, fmt.Errorf("loading plan %s: %w", ref, err)
	}
	p.SetClock(a.clock)
	return p, nil
}

// resolve turns a CLI identifier into a backend. Bare paths become absolute
// filesystem roots so the manifest does not depend on the working directory.
func (a *VictoryApp) resolve(id string) (victory.Destination, error) {
	if id != "" && !strings.Contains(id, "://") {
		abs, err := filepath.Abs(id)
		if err != nil {
			return nil, fmt.Errorf("resolving path %s: %w", id, err)
		}
		id = abs
	}
	return a.resolver.Resolve(id)
}

// persistOperation records op in the history database, giving it an ID.
func (a *VictoryApp) persistOperation(op *PlanOperation) error {
	if op.Persisted() {
		return nil
	}
	rec, err := a.history.CreateOperation(op.RunID, op.Plan, op.Operation, a.clock.Now())
	if err != nil {
		return fmt.Errorf("recording operation: %w", err)
	}
	op.ID = rec.ID
	return nil
}

// track records fn as an operation in the history database.
func (a *VictoryApp) track(plan, operation string, fn func() (*victory.Results, error)) (*victory.Results, error) {
	op := NewPlanOperation(a.runID, plan, operation)
	if err := a.persistOperation(op); err != nil {
		return nil, err
	}

	res, runErr := fn()
	op.Finish(runErr)

	if err := a.history.FinishOperation(op.ID, op.Status, res, a.clock.Now()); err != nil {
		if runErr != nil {
			a.logger.Error("finishing operation failed", "operation", op.Operation, "error", err)
			return res, runErr
		}
		return res, fmt.Errorf("finishing operation: %w", err)
	}
	return res, runErr
}
