// Copyright 2020 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/scionproto/vxlan-decap/config"
	"github.com/scionproto/vxlan-decap/dataplane"
	"github.com/scionproto/vxlan-decap/dataplane/afpacket"
	"github.com/scionproto/vxlan-decap/device"
	"github.com/scionproto/vxlan-decap/metrics"
	"github.com/scionproto/vxlan-decap/pkg/log"
	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
	"github.com/scionproto/vxlan-decap/private/app"
	"github.com/scionproto/vxlan-decap/private/app/command"
	"github.com/scionproto/vxlan-decap/private/app/flag"
	libconfig "github.com/scionproto/vxlan-decap/private/config"
	"github.com/scionproto/vxlan-decap/runner"
	"github.com/scionproto/vxlan-decap/scenario"
	"github.com/scionproto/vxlan-decap/topology"
	"github.com/scionproto/vxlan-decap/warmup"
)

const (
	exitScenario = 1
	exitSetup    = 2
	exitWarmup   = 3
)

type runFlags struct {
	config       string
	topology     string
	vxlanEnabled bool
	format       string
	output       string
	logLevel     string
	noColor      bool
}

func newRun(pather command.Pather) *cobra.Command {
	var envFlags flag.DeviceEnvironment
	var flags runFlags

	var cmd = &cobra.Command{
		Use:   "run",
		Short: "Run the test against the device",
		Example: fmt.Sprintf(`  %[1]s --config vxlan_decap.toml
  %[1]s --config vxlan_decap.toml --vxlan-enabled --format json
  DUT_HOSTNAME=10.250.0.101 %[1]s --config vxlan_decap.toml`,
			command.Path(pather, "run")),
		Long: `'run' warms up the device under test and runs all scenarios for every VLAN.

The warm-up sends learning traffic until the ARP and MAC tables of the device
contain the test hosts. Afterwards, the scenarios run one after the other and
the run stops at the first unexpected outcome. The tables of the device are
logged to the diagnostic file on every failure.

The device parameters are taken from the command line flags, the environment
variables and the configuration file, in this order.

The exit code is 0 if the run passed, 1 if a scenario failed, 3 if the
warm-up failed, and 2 on any other error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := func(cfg *config.Config) {
				f := cmd.Flags()
				if f.Changed("topology") {
					cfg.General.ConfigFile = flags.topology
				}
				if f.Changed("vxlan-enabled") {
					cfg.General.VxlanEnabled = flags.vxlanEnabled
				}
				if f.Changed("format") {
					cfg.Report.Format = flags.format
				}
				if f.Changed("output") {
					cfg.Report.Output = flags.output
				}
				if f.Changed("log.level") {
					cfg.Logging.Console.Level = flags.logLevel
				}
			}
			cfg, err := loadConfig(flags.config, &envFlags, overrides)
			if err != nil {
				return app.WithExitCode(err, exitSetup)
			}
			if err := log.Setup(cfg.Logging); err != nil {
				return app.WithExitCode(serrors.Wrap("setting up logging", err), exitSetup)
			}
			defer log.Flush()
			defer log.HandlePanic()
			cmd.SilenceUsage = true

			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withExitCode(run(ctx, cfg, cmd.OutOrStdout(), !flags.noColor))
		},
	}

	envFlags.Register(cmd.Flags())
	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "Configuration file (required)")
	cmd.Flags().StringVar(&flags.topology, "topology", "",
		"Topology file, overrides general.config_file")
	cmd.Flags().BoolVar(&flags.vxlanEnabled, "vxlan-enabled", false,
		"Expect VXLAN decapsulation to work, overrides general.vxlan_enabled")
	cmd.Flags().StringVar(&flags.format, "format", "",
		"Specify the report format (human|json|yaml), overrides report.format")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "",
		"Write the report to this file instead of stdout, overrides report.output")
	cmd.Flags().StringVar(&flags.logLevel, "log.level", "", app.LogLevelUsage)
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
	return cmd
}

// loadConfig loads the configuration file, applies the overrides and the
// device environment, and validates the result.
func loadConfig(path string, env *flag.DeviceEnvironment,
	overrides func(*config.Config)) (*config.Config, error) {

	var cfg config.Config
	if err := libconfig.LoadFile(path, &cfg); err != nil {
		return nil, serrors.Wrap("loading configuration", err, "file", path)
	}
	if overrides != nil {
		overrides(&cfg)
	}
	if err := env.LoadExternalVars(); err != nil {
		return nil, serrors.Wrap("loading environment", err)
	}
	cfg.Device.SetCredentials(env.Resolve(cfg.Device.Credentials()))
	cfg.InitDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, serrors.Wrap("validating configuration", err, "file", path)
	}
	return &cfg, nil
}

// withExitCode attaches the exit code of the outcome to err.
func withExitCode(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, runner.ErrScenarioFailed):
		return app.WithExitCode(err, exitScenario)
	case errors.Is(err, warmup.ErrNotReady):
		return app.WithExitCode(err, exitWarmup)
	default:
		return app.WithExitCode(err, exitSetup)
	}
}

func run(ctx context.Context, cfg *config.Config, stdout io.Writer, colored bool) error {
	if d := cfg.Timing.RunTimeout.Duration; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	ctx, _ = log.WithLabels(ctx, "dut", cfg.Device.Hostname)

	topo, err := topology.Load(cfg.General.ConfigFile, cfg.General.ActiveActive)
	if err != nil {
		return err
	}
	log.Info("Loaded topology", "file", cfg.General.ConfigFile,
		"cases", len(topo.Cases), "net_ports", topo.NetPorts)

	diag, err := log.NewFileLogger(
		log.DiagnosticsPath(cfg.Logging.Diagnostics.Dir, time.Now()))
	if err != nil {
		return err
	}
	defer diag.Close()
	log.Info("Writing diagnostics", "file", diag.Name())

	m := metrics.New(cfg.Metrics.Process)
	defer func() {
		if cfg.Metrics.Textfile == "" {
			return
		}
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Error("Writing metrics failed", "err", err)
		}
	}()

	names := dataplane.InterfaceNames(cfg.Dataplane.InterfaceFormat, topo.Ports())
	macs, err := dataplane.PortMACs(names)
	if err != nil {
		return err
	}
	ports, err := afpacket.OpenAll(names)
	if err != nil {
		return err
	}
	dp := dataplane.New(ports,
		dataplane.WithQueueLimit(cfg.Dataplane.QueueLimit),
		dataplane.WithLogger(log.New("component", "dataplane")),
		dataplane.WithMetrics(m.Dataplane),
	)
	defer func() {
		if err := dp.Close(); err != nil {
			log.Error("Closing dataplane failed", "err", err)
		}
	}()

	client, err := device.Dial(ctx, cfg.Device.DialConfig())
	if err != nil {
		return err
	}
	defer client.Close()
	log.Info("Connected to device", "host", cfg.Device.Hostname)

	sc := cfg.ScenarioContext()
	sc.Topology = topo
	sc.PortMACs = macs
	sc.InitDefaults()
	if err := sc.Validate(); err != nil {
		return serrors.Wrap("validating scenario context", err)
	}
	exec := &scenario.Executor{Dataplane: dp, Context: sc, Metrics: m.Scenario}

	r := &runner.Runner{
		Warmup: &warmup.Gate{
			Learner:  exec,
			Device:   client,
			PortMACs: macs,
			Interval: cfg.Timing.WarmupInterval.Duration,
			Timeout:  cfg.Timing.WarmupTimeout.Duration,
			Logger:   diag,
			Metrics:  m.Warmup,
			OnState: func(tc string, s warmup.State) {
				log.Debug("Warm-up state changed", "case", tc, "state", s)
			},
		},
		Scenarios:    exec,
		Device:       client,
		Cases:        topo.Cases,
		VxlanEnabled: cfg.General.VxlanEnabled,
		Logger:       diag,
		Metrics:      m.Runner,
	}
	rep, runErr := r.Run(ctx)
	if err := writeReport(rep, cfg.Report, stdout, colored); err != nil {
		log.Error("Writing report failed", "err", err)
	}
	return runErr
}

// writeReport writes the report to the configured output, or to stdout.
// Colors are only used on a terminal.
func writeReport(rep *runner.Report, cfg config.Report, stdout io.Writer, colored bool) error {
	if rep == nil {
		return nil
	}
	if cfg.Output == "" {
		return rep.Write(stdout, cfg.Format, colored && isTerminal(stdout))
	}
	f, err := os.Create(cfg.Output)
	if err != nil {
		return serrors.Wrap("creating report file", err, "file", cfg.Output)
	}
	if err := rep.Write(f, cfg.Format, false); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
