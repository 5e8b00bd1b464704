package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"victory-go/internal/config"
	"victory-go/internal/destination"
	"victory-go/internal/fs"
	"victory-go/internal/testutil"
	"victory-go/internal/victory"
)

func newTestApp(t *testing.T) (*VictoryApp, *config.Config) {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Database.Type = "memory"
	cfg.BatchSize = 4

	a := newVictoryApp(
		cfg,
		testutil.NewTestDatabase(t),
		destination.NewResolver(destination.ResolverOptions{}, nil),
		testutil.NewRecordingLogger(),
		testutil.TickingClock(time.Millisecond),
		testutil.NewStubIDGenerator().New(),
	)
	return a, cfg
}

func TestVictoryApp_EndToEnd(t *testing.T) {
	a, _ := newTestApp(t)

	src := filepath.Join(t.TempDir(), "src")
	dst := filepath.Join(t.TempDir(), "dst")
	testutil.PatternTree(t, src, 10, 128)

	manifest, err := a.NewPlan("home", []string{src}, []string{dst}, "")
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	if got := a.ManifestPath("home"); got != manifest {
		t.Errorf("ManifestPath(home) = %q, want %q", got, manifest)
	}

	res, err := a.Discover("home", 0)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if res.Files != 10 || res.Batches != 3 {
		t.Errorf("Discover() = %d files in %d batches, want 10 in 3", res.Files, res.Batches)
	}

	saved, err := a.ShowPlan("home")
	if err != nil {
		t.Fatalf("ShowPlan() error = %v", err)
	}
	wantBatches := []string{"home_0", "home_1", "home_2"}
	if diff := cmp.Diff(wantBatches, saved.Batches); diff != "" {
		t.Errorf("ledger mismatch (-want +got):\n%s", diff)
	}

	res, err = a.Run(manifest)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Files != 10 || res.Failed != 0 {
		t.Errorf("Run() = %d written, %d failed; want 10, 0", res.Files, res.Failed)
	}
	if diff := cmp.Diff(testutil.ReadTree(t, src), testutil.ReadTree(t, dst)); diff != "" {
		t.Errorf("destination differs from source (-src +dst):\n%s", diff)
	}

	ops, err := a.History(0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("len(History()) = %d, want 2", len(ops))
	}
	if ops[0].Operation != "run" || ops[1].Operation != "discover" {
		t.Errorf("operations = %s, %s; want run, discover", ops[0].Operation, ops[1].Operation)
	}
	for _, op := range ops {
		if op.Status != victory.StatusSuccess || op.RunID != "id-1" || op.Plan != "home" {
			t.Errorf("operation = %+v", op)
		}
	}
	if ops[0].Files != 10 || ops[0].Batches != 3 {
		t.Errorf("run metrics = %d files, %d batches", ops[0].Files, ops[0].Batches)
	}
}

func TestVictoryApp_RediscoverReplacesLedger(t *testing.T) {
	a, _ := newTestApp(t)

	src := filepath.Join(t.TempDir(), "src")
	dst := filepath.Join(t.TempDir(), "dst")
	testutil.PatternTree(t, src, 10, 32)

	manifest, err := a.NewPlan("home", []string{src}, []string{dst}, "")
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := a.Discover("home", 0); err != nil {
			t.Fatalf("Discover() #%d error = %v", i+1, err)
		}
	}

	saved, err := a.ShowPlan("home")
	if err != nil {
		t.Fatalf("ShowPlan() error = %v", err)
	}
	if diff := cmp.Diff([]string{"home_0", "home_1", "home_2"}, saved.Batches); diff != "" {
		t.Errorf("ledger after two discoveries (-want +got):\n%s", diff)
	}

	res, err := a.Run(manifest)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Files != 10 || res.Batches != 3 {
		t.Errorf("Run() = %d files in %d batches, want 10 in 3", res.Files, res.Batches)
	}
}

func TestVictoryApp_RediscoverDropsStaleBatches(t *testing.T) {
	a, _ := newTestApp(t)

	src := filepath.Join(t.TempDir(), "src")
	dst := filepath.Join(t.TempDir(), "dst")
	testutil.PatternTree(t, src, 10, 32)

	manifest, err := a.NewPlan("home", []string{src}, []string{dst}, "")
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	if _, err := a.Discover("home", 0); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	for i := 5; i < 10; i++ {
		if err := os.Remove(filepath.Join(src, fmt.Sprintf("file_%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := a.Discover("home", 0); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	saved, err := a.ShowPlan("home")
	if err != nil {
		t.Fatalf("ShowPlan() error = %v", err)
	}
	if diff := cmp.Diff([]string{"home_0", "home_1"}, saved.Batches); diff != "" {
		t.Errorf("ledger mismatch (-want +got):\n%s", diff)
	}
	entries, err := os.ReadDir(filepath.Join(saved.Path, victory.BatchDir))
	if err != nil {
		t.Fatalf("reading batch dir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("batch dir holds %d files, want 2", len(entries))
	}

	res, err := a.Run(manifest)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Files != 5 {
		t.Errorf("Run() wrote %d files, want 5", res.Files)
	}
	if got := len(testutil.ReadTree(t, dst)); got != 5 {
		t.Errorf("destination has %d files, want 5", got)
	}
}

func TestVictoryApp_NewPlanRejectsMemoryBackends(t *testing.T) {
	a, cfg := newTestApp(t)
	src := t.TempDir()

	tests := []struct {
		name    string
		sources []string
		dests   []string
	}{
		{name: "source", sources: []string{"memory://scratch"}, dests: []string{src}},
		{name: "destination", sources: []string{src}, dests: []string{"memory://scratch"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.NewPlan("mem", tt.sources, tt.dests, "")
			if !errors.Is(err, ErrEphemeralBackend) {
				t.Fatalf("NewPlan() error = %v, want ErrEphemeralBackend", err)
			}
			if _, err := os.Stat(filepath.Join(cfg.PlanDir, "mem")); !os.IsNotExist(err) {
				t.Errorf("plan directory created for rejected plan: %v", err)
			}
		})
	}
}

func TestVictoryApp_PersistOperation(t *testing.T) {
	a, _ := newTestApp(t)

	op := NewPlanOperation(a.RunID(), "home", "discover")
	if err := a.persistOperation(op); err != nil {
		t.Fatalf("persistOperation() error = %v", err)
	}
	if !op.Persisted() {
		t.Fatal("operation not persisted")
	}
	id := op.ID
	if err := a.persistOperation(op); err != nil {
		t.Fatalf("persistOperation() second call error = %v", err)
	}
	if op.ID != id {
		t.Errorf("ID changed from %d to %d on second persist", id, op.ID)
	}

	ops, err := a.History(0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ops) != 1 {
		t.Errorf("len(History()) = %d, want 1", len(ops))
	}
}

func TestVictoryApp_ProcessBatch(t *testing.T) {
	a, _ := newTestApp(t)

	src := filepath.Join(t.TempDir(), "src")
	dst := filepath.Join(t.TempDir(), "dst")
	testutil.PatternTree(t, src, 6, 16)

	if _, err := a.NewPlan("one", []string{src}, []string{dst}, ""); err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	if _, err := a.Discover("one", 4); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	res, err := a.ProcessBatch("one", "one_1")
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if res.Files != 2 {
		t.Errorf("ProcessBatch() wrote %d files, want 2", res.Files)
	}
	if got := len(testutil.ReadTree(t, dst)); got != 2 {
		t.Errorf("destination has %d files, want 2", got)
	}
}

func TestVictoryApp_FailedOperationIsRecorded(t *testing.T) {
	a, _ := newTestApp(t)

	src := filepath.Join(t.TempDir(), "src")
	testutil.PatternTree(t, src, 1, 8)
	if _, err := a.NewPlan("nodest", []string{src}, nil, ""); err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}

	_, err := a.Run("nodest")
	if !errors.Is(err, victory.ErrNoDestination) {
		t.Fatalf("Run() error = %v, want ErrNoDestination", err)
	}

	ops, err := a.History(1)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Status != victory.StatusError {
		t.Errorf("History() = %+v, want one failed operation", ops)
	}
}

func TestVictoryApp_LoadErrors(t *testing.T) {
	a, _ := newTestApp(t)

	if _, err := a.ShowPlan("missing"); err == nil {
		t.Error("ShowPlan() expected error for missing plan, got nil")
	}
	if _, err := a.Discover("missing", 1); err == nil {
		t.Error("Discover() expected error for missing plan, got nil")
	}
	if _, err := a.NewPlan("", nil, nil, ""); err == nil {
		t.Error("NewPlan() expected error for empty name, got nil")
	}
}

func TestVictoryApp_ManifestPath(t *testing.T) {
	a, cfg := newTestApp(t)

	existing := filepath.Join(t.TempDir(), "plan.manifest")
	if err := os.WriteFile(existing, []byte("name: x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		ref  string
		want string
	}{
		{ref: "home", want: filepath.Join(cfg.PlanDir, "home", "home.yaml")},
		{ref: "/tmp/elsewhere/home.yaml", want: "/tmp/elsewhere/home.yaml"},
		{ref: existing, want: existing},
	}
	for _, tt := range tests {
		if got := a.ManifestPath(tt.ref); got != tt.want {
			t.Errorf("ManifestPath(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestVictoryApp_GenerateTestTree(t *testing.T) {
	a, _ := newTestApp(t)
	dir := filepath.Join(t.TempDir(), "gen")

	if err := a.GenerateTestTree(dir, 300, 3); err != nil {
		t.Fatalf("GenerateTestTree() error = %v", err)
	}
	files := testutil.ReadTree(t, dir)
	if len(files) != 3 {
		t.Fatalf("generated %d files, want 3", len(files))
	}
	for name, data := range files {
		if !bytes.Equal(data, fs.PatternContent(300)) {
			t.Errorf("%s has unexpected content", name)
		}
	}
}

func TestNewVictoryApp(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	var stderr bytes.Buffer

	a, err := NewVictoryApp(cfg, Options{Stderr: &stderr, IDGenerator: testutil.NewStubIDGenerator()})
	if err != nil {
		t.Fatalf("NewVictoryApp() error = %v", err)
	}
	if got := a.RunID(); got != "id-1" {
		t.Errorf("RunID() = %q, want id-1", got)
	}

	a.logger.Info("hello")
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.LogDir, LogFileName)); err != nil {
		t.Errorf("log file not created: %v", err)
	}
	if !bytes.Contains(stderr.Bytes(), []byte("\tid-1\thello")) {
		t.Errorf("stderr = %q, want hello line", stderr.String())
	}
}

func TestNewVictoryApp_BadDatabase(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.Database.Type = "postgres"

	if _, err := NewVictoryApp(cfg, Options{Stderr: io.Discard}); err == nil {
		t.Error("NewVictoryApp() expected error for unknown database type, got nil")
	}
}
