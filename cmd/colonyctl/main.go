// Command colonyctl runs colonies headless and inspects their journals,
// snapshots and run index.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pthm-cable/acre/config"
	"github.com/pthm-cable/acre/game"
	"github.com/pthm-cable/acre/journal"
	"github.com/pthm-cable/acre/runindex"
	"github.com/pthm-cable/acre/telemetry"
	"github.com/pthm-cable/acre/world"
	"github.com/pthm-cable/acre/worldgen"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "colonyctl",
		Short: "Leafcutter colony simulation tools",
	}
	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml (empty = use defaults)")

	rootCmd.AddCommand(runCmd(), sliceCmd(), journalCmd(), runsCmd(), windowsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func runCmd() *cobra.Command {
	var (
		seed      int64
		ticks     int
		outputDir string
		journalTo string
		indexDB   string
		label     string
		logEvery  int
		sliceZ    int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a colony headless for a number of ticks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			titleColor.Printf("Colony run: seed %d, %d ticks\n", seed, ticks)

			var windows []telemetry.WindowStats
			g, err := game.New(cfg, game.Options{
				Seed:        seed,
				OutputDir:   outputDir,
				JournalPath: journalTo,
				IndexPath:   indexDB,
				RunLabel:    label,
				OnStats:     func(s telemetry.WindowStats) { windows = append(windows, s) },
			})
			if err != nil {
				return err
			}

			start := time.Now()
			for i := 0; i < ticks; i++ {
				g.Step()
				if logEvery > 0 && int(g.Tick())%logEvery == 0 {
					g.LogWorldState()
				}
			}
			elapsed := time.Since(start)

			if sliceZ >= 0 {
				g.View(func(v game.ReadView) {
					printSlice(v.Grid(), sliceZ, antCells(v.Ants()))
				})
			}

			digest := g.Digest()
			pop := g.Population()
			if err := g.Close(); err != nil {
				return err
			}

			printWindows(windows)
			fmt.Println()
			if pop == 0 {
				warnColor.Println("Colony died out.")
			} else {
				successColor.Printf("Colony alive: %d ants\n", pop)
			}
			fmt.Printf("   Ticks:   %d (%.0f ticks/s)\n", ticks, float64(ticks)/max(elapsed.Seconds(), 1e-9))
			fmt.Printf("   Digest:  %s\n", digest)
			return nil
		},
	}
	f := cmd.Flags()
	f.Int64Var(&seed, "seed", 0, "RNG seed (0 = time-based)")
	f.IntVar(&ticks, "ticks", 1000, "Ticks to run")
	f.StringVar(&outputDir, "output-dir", "", "Output directory for CSV logs")
	f.StringVar(&journalTo, "journal", "", "Write a per-tick action journal")
	f.StringVar(&indexDB, "index-db", "", "Record the run in this SQLite index")
	f.StringVar(&label, "label", "", "Run label stored in the index")
	f.IntVar(&logEvery, "log-every", 0, "Log colony state every N ticks (0 = off)")
	f.IntVar(&sliceZ, "slice", -1, "Print the z-slice at this depth when done (-1 = off)")
	return cmd
}

func sliceCmd() *cobra.Command {
	var (
		seed     int64
		z        int
		snapshot string
	)
	cmd := &cobra.Command{
		Use:   "slice",
		Short: "Print one z-level of a generated world or a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if snapshot != "" {
				snap, err := telemetry.LoadSnapshot(snapshot)
				if err != nil {
					return err
				}
				g := world.NewGrid(snap.Size, snap.SurfaceLevel)
				cells := g.Cells()
				if len(snap.Tiles) != len(cells) {
					return fmt.Errorf("snapshot has %d tiles, want %d", len(snap.Tiles), len(cells))
				}
				for i, t := range snap.Tiles {
					cells[i].Tile = world.Tile(t)
				}
				ants := make(map[world.Coord]int)
				for _, a := range snap.Ants {
					ants[a.Pos]++
				}
				titleColor.Printf("Snapshot tick %d, z=%d, digest %s\n", snap.Tick, z, snap.Digest())
				printSlice(g, z, ants)
				return nil
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			gen, err := worldgen.Generate(cfg, seed)
			if err != nil {
				return err
			}
			titleColor.Printf("World seed %d, z=%d, nest %v, %d trees\n", seed, z, gen.Nest, len(gen.Plants))
			printSlice(gen.Grid, z, nil)
			return nil
		},
	}
	f := cmd.Flags()
	f.Int64Var(&seed, "seed", 1, "World seed")
	f.IntVar(&z, "z", 16, "Depth to print (z grows downward)")
	f.StringVar(&snapshot, "snapshot", "", "Read tiles from this snapshot instead of generating")
	return cmd
}

func journalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "journal <path>",
		Short: "Summarize an action journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applied := make(map[string]int)
			rejected := make(map[string]int)
			events := make(map[string]int)
			ticks := 0
			if err := journal.Read(args[0], func(e journal.TickEntry) error {
				ticks++
				for _, a := range e.Applied {
					applied[a.Kind]++
				}
				for _, a := range e.Rejected {
					rejected[a.Kind]++
				}
				for _, ev := range e.Events {
					key := ev.Type.String()
					if ev.Cause != "" {
						key += " (" + ev.Cause + ")"
					}
					events[key]++
				}
				return nil
			}); err != nil {
				return err
			}

			titleColor.Printf("Journal %s: %d ticks\n", args[0], ticks)

			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"Action", "Applied", "Rejected"}),
			)
			for _, k := range unionKeys(applied, rejected) {
				table.Append([]string{k, strconv.Itoa(applied[k]), strconv.Itoa(rejected[k])})
			}
			table.Render()

			fmt.Println()
			table = tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"Event", "Count"}),
			)
			for _, k := range unionKeys(events, nil) {
				table.Append([]string{k, strconv.Itoa(events[k])})
			}
			table.Render()
			return nil
		},
	}
}

func runsCmd() *cobra.Command {
	var (
		db    string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs in the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := runindex.Open(db)
			if err != nil {
				return err
			}
			defer idx.Close()

			runs, err := idx.Runs(context.Background(), limit)
			if err != nil {
				return err
			}
			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"ID", "Seed", "Label", "Started", "Ticks", "Final Pop", "Digest"}),
			)
			for _, r := range runs {
				digest := r.Digest
				if len(digest) > 12 {
					digest = digest[:12]
				}
				table.Append([]string{
					strconv.FormatInt(r.ID, 10),
					strconv.FormatInt(r.Seed, 10),
					r.Label,
					r.StartedAt.Local().Format(time.DateTime),
					strconv.Itoa(int(r.Ticks)),
					strconv.Itoa(r.FinalPopulation),
					digest,
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "index-db", "runs.db", "SQLite run index")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	return cmd
}

func windowsCmd() *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:   "windows <run-id>",
		Short: "Show the stats windows and bookmarks of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("run id: %w", err)
			}
			idx, err := runindex.Open(db)
			if err != nil {
				return err
			}
			defer idx.Close()

			ctx := context.Background()
			windows, err := idx.Windows(ctx, runID)
			if err != nil {
				return err
			}
			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"Window End", "Pop", "Births", "Deaths", "Digs", "Food", "Hunger"}),
			)
			for _, w := range windows {
				table.Append([]string{
					strconv.Itoa(int(w.WindowEnd)),
					strconv.Itoa(w.Population),
					strconv.Itoa(w.Births),
					strconv.Itoa(w.Deaths),
					strconv.Itoa(w.Digs),
					strconv.Itoa(w.GardenFood),
					fmt.Sprintf("%.1f", w.HungerMean),
				})
			}
			table.Render()

			bms, err := idx.Bookmarks(ctx, runID)
			if err != nil {
				return err
			}
			if len(bms) > 0 {
				fmt.Println("\nBookmarks:")
				for _, b := range bms {
					warnColor.Printf("   %6d  %-20s %s\n", b.Tick, b.Type, b.Description)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "index-db", "runs.db", "SQLite run index")
	return cmd
}

func printWindows(windows []telemetry.WindowStats) {
	if len(windows) == 0 {
		return
	}
	fmt.Println()
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Tick", "Pop", "Q/W/F/G/S", "Births", "Deaths", "Digs", "Leaves", "Food", "Hunger p50"}),
	)
	for _, s := range windows {
		table.Append([]string{
			strconv.Itoa(int(s.WindowEndTick)),
			strconv.Itoa(s.Population),
			fmt.Sprintf("%d/%d/%d/%d/%d", s.Queens, s.Workers, s.Foragers, s.Gardeners, s.Soldiers),
			strconv.Itoa(s.Births),
			strconv.Itoa(s.Deaths),
			strconv.Itoa(s.Digs),
			strconv.Itoa(s.LeavesCut),
			strconv.Itoa(s.GardenFood),
			fmt.Sprintf("%.1f", s.HungerP50),
		})
	}
	table.Render()
}

func antCells(ants []game.AntInfo) map[world.Coord]int {
	out := make(map[world.Coord]int, len(ants))
	for _, a := range ants {
		out[a.Pos]++
	}
	return out
}

func unionKeys(a, b map[string]int) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var keys []string
	for _, m := range []map[string]int{a, b} {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}
