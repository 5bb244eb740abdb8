package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qlink-sim/qlink-sim/sim"
)

var (
	// CLI flags shared by run and sweep
	scenarioPath string  // Path to the YAML scenario file
	seed         int64   // Overrides the scenario seed when >= 0
	duration     float64 // Overrides the scenario duration when > 0
	logLevel     string  // Log verbosity level
	recordsPath  string  // Where to write the completed-request record stream ("-" = stdout)

	// sweep flags
	replications int // Number of replications with consecutive seeds
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "qlink-sim",
	Short: "Discrete-event simulator for quantum network link layers",
}

// loadScenario reads the scenario file and applies flag overrides.
func loadScenario() *sim.ScenarioConfig {
	if scenarioPath == "" {
		logrus.Fatalf("No scenario file provided (--scenario). Exiting.")
	}
	cfg, err := sim.LoadScenario(scenarioPath)
	if err != nil {
		logrus.Fatalf("Unable to load scenario: %v", err)
	}
	if seed >= 0 {
		cfg.Seed = seed
	}
	if duration > 0 {
		cfg.Duration = duration
	}
	return cfg
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// runCmd executes a single simulation run.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation of a scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg := loadScenario()

		logrus.Infof("Starting simulation: %d nodes, %d links, %d requests, seed=%d, duration=%.3fs",
			len(cfg.Nodes), len(cfg.Links), len(cfg.Requests), cfg.Seed, cfg.Duration)

		s, err := sim.NewSimulator(cfg)
		if err != nil {
			logrus.Fatalf("Unable to build simulation: %v", err)
		}
		s.Run()
		s.Metrics.Print(os.Stdout)

		if recordsPath != "" {
			writeRecords(s.Metrics)
		}

		logrus.Info("Simulation complete.")
	},
}

// sweepCmd runs independent replications with consecutive seeds.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run independent replications with consecutive seeds",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg := loadScenario()

		results, err := sim.RunReplications(cfg, cfg.Seed, replications)
		if err != nil {
			logrus.Fatalf("Unable to run replications: %v", err)
		}
		for _, res := range results {
			if res.Err != nil {
				logrus.Fatalf("Replication with seed %d aborted: %v", res.Seed, res.Err)
			}
			summary := res.Metrics.Summarize()
			logrus.Infof("seed=%d satisfied=%d failed=%d mean_fidelity=%.4f mean_tts=%.6fs",
				res.Seed, summary.Satisfied, summary.Failed, summary.MeanFidelity, summary.MeanTimeToSuccessS)
		}

		logrus.Info("Sweep complete.")
	},
}

func writeRecords(m *sim.Metrics) {
	out := os.Stdout
	if recordsPath != "-" {
		f, err := os.Create(recordsPath)
		if err != nil {
			logrus.Fatalf("Unable to create records file: %v", err)
		}
		defer f.Close()
		out = f
	}
	if err := m.WriteRecords(out); err != nil {
		logrus.Fatalf("Unable to write records: %v", err)
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, sweepCmd} {
		c.Flags().StringVar(&scenarioPath, "scenario", "", "Path to the YAML scenario file")
		c.Flags().Int64Var(&seed, "seed", -1, "Seed override (scenario seed when negative)")
		c.Flags().Float64Var(&duration, "duration", 0, "Simulated duration override, seconds (scenario value when 0)")
		c.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	}
	runCmd.Flags().StringVar(&recordsPath, "records", "", "Write completed-request records to this file (\"-\" for stdout)")
	sweepCmd.Flags().IntVar(&replications, "replications", 10, "Number of replications with consecutive seeds")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sweepCmd)
}
