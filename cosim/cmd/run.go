package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cosim/archive"
	"github.com/sarchlab/cosim/config"
	"github.com/sarchlab/cosim/simulation"
)

type runOptions struct {
	iterations  int
	threads     int
	delay       time.Duration
	monitor     bool
	monitorPort int
	openBrowser bool
	output      string
	saveArchive string
	envFile     string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [scenario.yaml]",
	Short: "Build a scenario and tick it.",
	Long: `Build a scenario and tick it. With --iterations the run stops ` +
		`after that many ticks; otherwise it runs until interrupted. Settings ` +
		`come from the scenario, then the .env file and COSIM_* variables, ` +
		`then the flags.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd, args)
	},
}

func init() {
	f := runCmd.Flags()
	f.IntVarP(&runOpts.iterations, "iterations", "n", 0,
		"number of ticks to run, 0 to run until interrupted")
	f.IntVar(&runOpts.threads, "threads", 0,
		"worker threads for the parallel controller, 0 for one per CPU")
	f.DurationVar(&runOpts.delay, "delay", 0, "pause between ticks")
	f.BoolVar(&runOpts.monitor, "monitor", false,
		"serve the monitoring web page")
	f.IntVar(&runOpts.monitorPort, "monitor-port", 0,
		"port of the monitoring server, 0 for a random port")
	f.BoolVar(&runOpts.openBrowser, "open-browser", false,
		"open the monitoring page in a browser")
	f.StringVarP(&runOpts.output, "output", "o", "",
		"recording database name, without the .sqlite3 extension")
	f.StringVar(&runOpts.saveArchive, "save-archive", "",
		"save the workspace archive to this file after the run")
	f.StringVar(&runOpts.envFile, "env-file", ".env",
		"dotenv file with COSIM_* settings")

	rootCmd.AddCommand(runCmd)
}

func loadScenario(args []string) (*config.Scenario, error) {
	if len(args) == 0 {
		return config.Parse(strings.NewReader(""))
	}

	return config.Load(args[0])
}

// resolveSettings layers the environment and the flags that were set on top
// of the scenario.
func resolveSettings(
	cmd *cobra.Command,
	scenario *config.Scenario,
	env config.Env,
) runOptions {
	env.Apply(scenario)

	opts := runOpts
	flags := cmd.Flags()

	if !flags.Changed("iterations") {
		opts.iterations = scenario.Iterations
	}

	if flags.Changed("threads") {
		scenario.Threads = opts.threads
	}

	if flags.Changed("delay") {
		scenario.Delay = opts.delay
	}

	if !flags.Changed("output") {
		opts.output = scenario.Output
	}

	if !flags.Changed("monitor-port") {
		opts.monitorPort = env.MonitorPort
	}

	if flags.Changed("monitor-port") || opts.openBrowser {
		opts.monitor = true
	}

	return opts
}

func runScenario(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	scenario, err := loadScenario(args)
	if err != nil {
		return err
	}

	env, err := config.LoadEnv(runOpts.envFile)
	if err != nil {
		return err
	}

	opts := resolveSettings(cmd, scenario, env)

	builder := simulation.MakeBuilder().
		WithLogger(logger).
		WithOutputFileName(opts.output)
	if opts.monitor {
		builder = builder.WithMonitorPort(opts.monitorPort)
	} else {
		builder = builder.WithoutMonitoring()
	}

	sim, err := builder.Build()
	if err != nil {
		return err
	}
	defer sim.Terminate()

	if _, err := sim.LoadScenario(scenario); err != nil {
		return err
	}

	if opts.openBrowser {
		if err := sim.GetMonitor().OpenInBrowser(); err != nil {
			logger.Warn("opening browser", "err", err)
		}
	}

	if err := drive(cmd.Context(), sim, opts.iterations); err != nil {
		return err
	}

	ws := sim.Workspace()
	fmt.Fprintf(cmd.OutOrStdout(),
		"%s finished at iteration %d, time %g\n",
		scenarioName(scenario, args), ws.Iteration(), ws.Time())

	if opts.saveArchive != "" {
		if err := archive.Save(ws, opts.saveArchive); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "archive saved to %s\n", opts.saveArchive)
	}

	return nil
}

// drive runs n ticks, or runs until the context is canceled or the process
// is interrupted when n is zero.
func drive(ctx context.Context, sim *simulation.Simulation, n int) error {
	if n > 0 {
		return sim.Iterate(n)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	return sim.RunUntil(ctx)
}

func scenarioName(s *config.Scenario, args []string) string {
	switch {
	case s.Name != "":
		return s.Name
	case len(args) > 0:
		return filepath.Base(args[0])
	default:
		return "workspace"
	}
}
