package main

import (
	"fmt"
	"os"
	"time"

	"github.com/san-kum/hoversim/internal/config"
	"github.com/san-kum/hoversim/internal/dynamo"
	"github.com/san-kum/hoversim/internal/viz"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string

	dt             float64
	duration       float64
	setpoint       float64
	seed           int64
	controllerName string
	strict         bool
	noClamp        bool

	kp            float64
	ki            float64
	kd            float64
	kff           float64
	integralLimit float64
	derivEMA      float64
	measEMA       float64
	outputEMA     float64
	sensorStd     float64

	runs      int
	workers   int
	noSave    bool
	pngOut    string
	svgOut    string
	snapshots string
	outFile   string
	showPhase bool

	axes       []string
	metricName string
	top        int
	saveBest   string
)

// main wires the hoversim commands. Without a subcommand it opens the preset
// picker for the live view.
func main() {
	rootCmd := &cobra.Command{
		Use:          "hoversim",
		Short:        "particle hover simulation under PID control",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunPicker(config.ListPresets(), config.PresetInfo, startPreset)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".hoversim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log simulation diagnostics")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a batch episode and record it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().IntVar(&runs, "runs", 1, "ensemble size, each run with its own noise seed")
	runCmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (0 = GOMAXPROCS)")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not record the run")
	runCmd.Flags().StringVar(&pngOut, "png", "", "also write a PNG plot")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run the simulation in the terminal with keyboard tuning",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addConfigFlags(liveCmd)
	liveCmd.Flags().StringVar(&snapshots, "snapshots", "", "directory for SVG frame snapshots (s key)")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search over gains",
		Args:  cobra.NoArgs,
		RunE:  runTune,
	}
	addConfigFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&axes, "axis", nil, "search axis, name=lo:hi:n or name=v1,v2 (repeatable)")
	tuneCmd.Flags().StringVar(&metricName, "metric", "tracking_error", "metric to minimize")
	tuneCmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (0 = GOMAXPROCS)")
	tuneCmd.Flags().IntVar(&top, "top", 10, "rows to print")
	tuneCmd.Flags().StringVar(&saveBest, "save", "", "write the best configuration to this yaml file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot height, setpoint and thrust of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&pngOut, "png", "", "write a PNG instead of a terminal plot")
	plotCmd.Flags().StringVar(&svgOut, "svg", "", "write the height trace as SVG")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "step response and tracking error spectrum",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().BoolVar(&showPhase, "phase", false, "draw the height/velocity phase portrait")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run samples as csv",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and samples as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets, or print one as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	rootCmd.AddCommand(runCmd, liveCmd, tuneCmd, listCmd, plotCmd, analyzeCmd, exportCSVCmd, exportJSONCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "start from a preset")
	f.Float64Var(&dt, "dt", config.DefaultDt, "timestep in seconds")
	f.Float64Var(&duration, "time", config.DefaultDuration, "duration in seconds")
	f.Float64Var(&setpoint, "setpoint", config.DefaultSetpoint, "target height")
	f.Int64Var(&seed, "seed", 0, "sensor noise seed (0 = config seed, else random)")
	f.StringVar(&controllerName, "controller", "pid", "controller: pid, none, manual")
	f.BoolVar(&strict, "strict", false, "stop on degenerate steps")
	f.BoolVar(&noClamp, "no-clamp", false, "disable thrust limits")
	f.Float64Var(&kp, "kp", config.DefaultKp, "proportional gain")
	f.Float64Var(&ki, "ki", config.DefaultKi, "integral gain")
	f.Float64Var(&kd, "kd", config.DefaultKd, "derivative gain")
	f.Float64Var(&kff, "kff", config.DefaultKFF, "feed-forward gain")
	f.Float64Var(&integralLimit, "integral-limit", config.DefaultIntegralLimit, "integral clamp")
	f.Float64Var(&derivEMA, "derivative-ema", config.DefaultDerivativeEMA, "derivative smoothing factor")
	f.Float64Var(&measEMA, "measurement-ema", config.DefaultMeasurementEMA, "measurement smoothing factor")
	f.Float64Var(&outputEMA, "output-ema", config.DefaultOutputEMA, "output smoothing factor (enables smoothing)")
	f.Float64Var(&sensorStd, "sensor-std", config.DefaultSensor, "sensor noise std in meters")
}

// paramFlags maps float flags onto config parameter names.
var paramFlags = map[string]string{
	"setpoint":        "setpoint",
	"kp":              "kp",
	"ki":              "ki",
	"kd":              "kd",
	"kff":             "kff",
	"integral-limit":  "integral_limit",
	"derivative-ema":  "derivative_ema",
	"measurement-ema": "measurement_ema",
	"output-ema":      "output_ema",
	"sensor-std":      "sensor_std",
}

// loadConfig starts from the defaults, a preset or a config file, then
// applies only the flags given on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		p, err := config.GetPreset(preset)
		if err != nil {
			return nil, err
		}
		cfg = p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	for flag, param := range paramFlags {
		if !flags.Changed(flag) {
			continue
		}
		v, err := flags.GetFloat64(flag)
		if err != nil {
			return nil, err
		}
		if err := cfg.Set(param, v); err != nil {
			return nil, err
		}
	}
	if flags.Changed("dt") {
		cfg.Run.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Run.Duration = duration
	}
	if flags.Changed("controller") {
		cfg.Run.Controller = controllerName
	}
	if flags.Changed("seed") {
		cfg.Run.Seed = seed
	}
	if flags.Changed("strict") {
		cfg.Run.Strict = strict
	}
	if flags.Changed("no-clamp") {
		cfg.Env.ClampThrust = !noClamp
	}
	if cfg.Run.Seed == 0 {
		cfg.Run.Seed = time.Now().UnixNano()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFlagsChanged(cmd *cobra.Command) bool {
	changed := false
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Name != "snapshots" {
			changed = true
		}
	})
	return changed
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func startPreset(name string) (viz.Model, error) {
	cfg, err := config.GetPreset(name)
	if err != nil {
		return viz.Model{}, err
	}
	clock := dynamo.NewManualClock(time.Now())
	r, err := cfg.NewRunner(clock, cfg.Run.Seed)
	if err != nil {
		return viz.Model{}, err
	}
	return viz.NewModel(r, clock).WithSnapshots(snapshots), nil
}

func runLive(cmd *cobra.Command, args []string) error {
	if preset == "" && configFile == "" && !configFlagsChanged(cmd) {
		return viz.RunPicker(config.ListPresets(), config.PresetInfo, startPreset)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	clock := dynamo.NewManualClock(time.Now())
	r, err := cfg.NewRunner(clock, cfg.Run.Seed)
	if err != nil {
		return err
	}
	r.SetLogger(newLogger())
	return viz.Run(viz.NewModel(r, clock).WithSnapshots(snapshots))
}
