package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"victory-go/internal/app"
	"victory-go/internal/config"
	"victory-go/internal/victory"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var verbose bool

// newApp reads the config and creates a VictoryApp. The caller must defer app.Close().
func newApp() (*app.VictoryApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewVictoryApp(cfg, app.Options{Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// humanOutput reports whether stdout is a terminal. Pipes get tab-separated
// rows without headers.
func humanOutput() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func printResults(w io.Writer, action string, res *victory.Results) {
	if res == nil {
		return
	}
	if !humanOutput() {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", action, res.Files, res.Failed, res.Batches, res.TotalTime)
		return
	}
	fmt.Fprintf(w, "%s %s file(s) in %s batch(es), %d failed, took %s\n",
		action,
		humanize.Comma(int64(res.Files)),
		humanize.Comma(int64(res.Batches)),
		res.Failed,
		res.TotalTime.Truncate(time.Millisecond),
	)
}

var rootCmd = &cobra.Command{
	Use:          "victory",
	Short:        "Batched, checkpointed file backup",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Plan Dir:   %s\n", cfg.PlanDir)
		fmt.Printf("Batch Size: %s\n", humanize.Comma(int64(cfg.EffectiveBatchSize())))
		fmt.Printf("Database:   %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		if len(cfg.Filesystem.Ignore) > 0 {
			fmt.Printf("Ignore:     %s\n", strings.Join(cfg.Filesystem.Ignore, ", "))
		}
		if cfg.S3.Region != "" || cfg.S3.Endpoint != "" {
			fmt.Printf("S3:         region=%s endpoint=%s path_style=%t\n", cfg.S3.Region, cfg.S3.Endpoint, cfg.S3.UsePathStyle)
		}
		return nil
	},
}

// plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage backup plans",
}

var planNewCmd = &cobra.Command{
	Use:   "new NAME",
	Short: "Create a plan from sources and destinations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, _ := cmd.Flags().GetStringArray("source")
		destinations, _ := cmd.Flags().GetStringArray("dest")
		dir, _ := cmd.Flags().GetString("dir")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		manifest, err := a.NewPlan(args[0], sources, destinations, dir)
		if err != nil {
			return fmt.Errorf("creating plan: %w", err)
		}

		fmt.Printf("Plan saved to %s\n", manifest)
		return nil
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show PLAN",
	Short: "Display a plan manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		saved, err := a.ShowPlan(args[0])
		if err != nil {
			return err
		}

		if !humanOutput() {
			for _, s := range saved.Sources {
				fmt.Printf("source\t%s\n", s)
			}
			for _, d := range saved.Destinations {
				fmt.Printf("destination\t%s\n", d)
			}
			for _, b := range saved.Batches {
				fmt.Printf("batch\t%s\n", b)
			}
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Name:\t%s\n", saved.Name)
		fmt.Fprintf(w, "Root:\t%s\n", saved.Path)
		fmt.Fprintf(w, "Sources:\t%s\n", strings.Join(saved.Sources, ", "))
		fmt.Fprintf(w, "Destinations:\t%s\n", strings.Join(saved.Destinations, ", "))
		fmt.Fprintf(w, "Batches:\t%d\n", len(saved.Batches))
		for _, b := range saved.Batches {
			fmt.Fprintf(w, "\t%s\n", b)
		}
		return w.Flush()
	},
}

// discover command
var discoverCmd = &cobra.Command{
	Use:   "discover PLAN",
	Short: "Enumerate sources into batches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Discover(args[0], batchSize)
		if err != nil {
			return fmt.Errorf("discovery failed: %w", err)
		}

		printResults(os.Stdout, "Discovered", res)
		return nil
	},
}

// run command
var runCmd = &cobra.Command{
	Use:   "run PLAN",
	Short: "Replay every batch of a plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Run(args[0])
		printResults(os.Stdout, "Copied", res)
		if err != nil {
			return fmt.Errorf("run failed: %w", err)
		}
		return nil
	},
}

// batch command
var batchCmd = &cobra.Command{
	Use:   "batch PLAN BATCH",
	Short: "Replay a single batch",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.ProcessBatch(args[0], args[1])
		if err != nil {
			return fmt.Errorf("processing batch: %w", err)
		}

		printResults(os.Stdout, "Copied", res)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View discover and run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			if !humanOutput() {
				fmt.Printf("%d\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					op.ID, op.RunID, op.Plan, op.Operation, op.Status,
					op.Files, op.Failed, op.Batches, duration)
				continue
			}
			fmt.Printf("#%d  %-10s  %-15s  %s  %-8s  %s files  %d failed  %s\n",
				op.ID,
				op.Operation,
				op.Plan,
				op.StartedAt.Local().Format("2006-01-02 15:04:05"),
				op.Status,
				humanize.Comma(op.Files),
				op.Failed,
				duration,
			)
		}
		return nil
	},
}

// testdata command
var testdataCmd = &cobra.Command{
	Use:   "testdata DIR",
	Short: "Generate a directory of pattern files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, _ := cmd.Flags().GetInt("size")
		count, _ := cmd.Flags().GetInt("count")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.GenerateTestTree(args[0], size, count); err != nil {
			return err
		}

		fmt.Printf("Generated %s file(s) of %s in %s\n",
			humanize.Comma(int64(count)), humanize.Bytes(uint64(size)), args[0])
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug records")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// plan subcommands
	planCmd.AddCommand(planNewCmd)
	planNewCmd.Flags().StringArrayP("source", "s", nil, "Source identifier (path or s3://bucket/prefix)")
	planNewCmd.Flags().StringArrayP("dest", "d", nil, "Destination identifier (path or s3://bucket/prefix)")
	planNewCmd.Flags().String("dir", "", "Plan root directory (default <plan_dir>/<name>)")
	planCmd.AddCommand(planShowCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().IntP("batch-size", "b", 0, "Files per batch (default from config)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(testdataCmd)
	testdataCmd.Flags().Int("size", 1_000_000, "Size of each file in bytes")
	testdataCmd.Flags().Int("count", 2500, "Number of files")
}
