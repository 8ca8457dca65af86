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

// Package config describes the configuration of a vxlan-decap run.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/scionproto/vxlan-decap/device"
	"github.com/scionproto/vxlan-decap/pkg/log"
	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
	"github.com/scionproto/vxlan-decap/pkg/private/util"
	"github.com/scionproto/vxlan-decap/private/app/flag"
	"github.com/scionproto/vxlan-decap/private/config"
	"github.com/scionproto/vxlan-decap/scenario"
	"github.com/scionproto/vxlan-decap/warmup"
)

const (
	// DefaultCount is the default number of frames sent per probe.
	DefaultCount = 1
	// DefaultDeviceTimeout is the default timeout for connecting to the device.
	DefaultDeviceTimeout = 30 * time.Second
	// DefaultInterfaceFormat maps a port number to the interface name.
	DefaultInterfaceFormat = "eth%d"
	// DefaultQueueLimit is the default number of frames queued per port.
	DefaultQueueLimit = 100
	// DefaultReportFormat is the default format of the report.
	DefaultReportFormat = "human"
)

var _ config.Config = (*Config)(nil)

// Config is the configuration of a run.
type Config struct {
	General   General    `toml:"general,omitempty"`
	Device    Device     `toml:"device,omitempty"`
	Dataplane Dataplane  `toml:"dataplane,omitempty"`
	Timing    Timing     `toml:"timing,omitempty"`
	Logging   log.Config `toml:"log,omitempty"`
	Metrics   Metrics    `toml:"metrics,omitempty"`
	Report    Report     `toml:"report,omitempty"`
}

// InitDefaults initializes the default values for all parts of the config.
func (cfg *Config) InitDefaults() {
	config.InitAll(
		&cfg.General,
		&cfg.Device,
		&cfg.Dataplane,
		&cfg.Timing,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Report,
	)
}

// Validate validates all parts of the config.
func (cfg *Config) Validate() error {
	return config.ValidateAll(
		&cfg.General,
		&cfg.Device,
		&cfg.Dataplane,
		&cfg.Timing,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Report,
	)
}

// Sample generates a sample config file.
func (cfg *Config) Sample(dst io.Writer, path config.Path, _ config.CtxMap) {
	config.WriteSample(dst, path, nil,
		&cfg.General,
		&cfg.Device,
		&cfg.Dataplane,
		&cfg.Timing,
		&cfg.Logging,
		&cfg.Metrics,
		&cfg.Report,
	)
}

// ScenarioContext returns the timing and the count of the scenarios.
func (cfg *Config) ScenarioContext() scenario.Context {
	return scenario.Context{
		Count:       cfg.General.Count,
		PollTimeout: cfg.Timing.PollTimeout.Duration,
		VxlanDelay:  cfg.Timing.VxlanDelay.Duration,
		LearnDelay:  cfg.Timing.LearnDelay.Duration,
	}
}

var _ config.Config = (*General)(nil)

// General holds the test parameters.
type General struct {
	// ConfigFile is the topology description of the device.
	ConfigFile string `toml:"config_file,omitempty"`
	// VxlanEnabled is the expected state of VXLAN decapsulation.
	VxlanEnabled bool `toml:"vxlan_enabled,omitempty"`
	// Count is the number of frames sent per probe.
	Count int `toml:"count,omitempty"`
	// ActiveActive enables the dual ToR active-active mode.
	ActiveActive bool `toml:"is_active_active_dualtor,omitempty"`
}

// InitDefaults sets the default count.
func (cfg *General) InitDefaults() {
	if cfg.Count == 0 {
		cfg.Count = DefaultCount
	}
}

// Validate checks that the topology file is set and the count is positive.
func (cfg *General) Validate() error {
	if cfg.ConfigFile == "" {
		return serrors.New("config_file must be set")
	}
	if cfg.Count < 1 {
		return serrors.New("count must be at least 1", "count", cfg.Count)
	}
	return nil
}

// Sample writes the sample of the general block.
func (cfg *General) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, generalSample)
}

// ConfigName is the toml key of the general block.
func (cfg *General) ConfigName() string {
	return "general"
}

var _ config.Config = (*Device)(nil)

// Device describes how to reach the device under test.
type Device struct {
	Hostname    string `toml:"dut_hostname,omitempty"`
	User        string `toml:"sonic_admin_user,omitempty"`
	Password    string `toml:"sonic_admin_password,omitempty"`
	AltPassword string `toml:"sonic_admin_alt_password,omitempty"`
	// KnownHosts is the known_hosts file used to verify the host key. If
	// empty, the host key is not verified.
	KnownHosts string `toml:"known_hosts,omitempty"`
	// Timeout bounds the connection setup.
	Timeout util.DurWrap `toml:"timeout,omitempty"`
}

// InitDefaults sets the default timeout.
func (cfg *Device) InitDefaults() {
	initDurWrap(&cfg.Timeout, DefaultDeviceTimeout)
}

// Validate checks that all credentials are set.
func (cfg *Device) Validate() error {
	missing := []string{}
	for _, f := range []struct {
		name  string
		value string
	}{
		{"dut_hostname", cfg.Hostname},
		{"sonic_admin_user", cfg.User},
		{"sonic_admin_password", cfg.Password},
		{"sonic_admin_alt_password", cfg.AltPassword},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return serrors.New("device parameters must be set",
			"missing", strings.Join(missing, ","))
	}
	if cfg.Timeout.Duration <= 0 {
		return serrors.New("timeout must be positive", "timeout", cfg.Timeout)
	}
	return nil
}

// Credentials returns the credentials of the block.
func (cfg *Device) Credentials() flag.Credentials {
	return flag.Credentials{
		Hostname:    cfg.Hostname,
		User:        cfg.User,
		Password:    cfg.Password,
		AltPassword: cfg.AltPassword,
	}
}

// SetCredentials overwrites the credentials of the block.
func (cfg *Device) SetCredentials(c flag.Credentials) {
	cfg.Hostname = c.Hostname
	cfg.User = c.User
	cfg.Password = c.Password
	cfg.AltPassword = c.AltPassword
}

// DialConfig returns the configuration of the device connection.
func (cfg *Device) DialConfig() device.Config {
	return device.Config{
		Host:        cfg.Hostname,
		User:        cfg.User,
		Password:    cfg.Password,
		AltPassword: cfg.AltPassword,
		KnownHosts:  cfg.KnownHosts,
		Timeout:     cfg.Timeout.Duration,
	}
}

// Sample writes the sample of the device block.
func (cfg *Device) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, deviceSample)
}

// ConfigName is the toml key of the device block.
func (cfg *Device) ConfigName() string {
	return "device"
}

var _ config.Config = (*Dataplane)(nil)

// Dataplane describes the packet test ports.
type Dataplane struct {
	// InterfaceFormat is the fmt format of the interface name of a port.
	InterfaceFormat string `toml:"interface_format,omitempty"`
	// QueueLimit is the number of frames queued per port.
	QueueLimit int `toml:"queue_limit,omitempty"`
}

// InitDefaults sets the default format and queue limit.
func (cfg *Dataplane) InitDefaults() {
	if cfg.InterfaceFormat == "" {
		cfg.InterfaceFormat = DefaultInterfaceFormat
	}
	if cfg.QueueLimit == 0 {
		cfg.QueueLimit = DefaultQueueLimit
	}
}

// Validate checks that the format has exactly one integer verb.
func (cfg *Dataplane) Validate() error {
	if strings.Count(cfg.InterfaceFormat, "%d") != 1 ||
		strings.Count(cfg.InterfaceFormat, "%") != 1 {
		return serrors.New("interface_format must contain a single %d",
			"interface_format", cfg.InterfaceFormat)
	}
	if cfg.QueueLimit < 1 {
		return serrors.New("queue_limit must be positive", "queue_limit", cfg.QueueLimit)
	}
	return nil
}

// InterfaceName returns the name of the interface of the port.
func (cfg *Dataplane) InterfaceName(port int) string {
	return fmt.Sprintf(cfg.InterfaceFormat, port)
}

// Sample writes the sample of the dataplane block.
func (cfg *Dataplane) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, dataplaneSample)
}

// ConfigName is the toml key of the dataplane block.
func (cfg *Dataplane) ConfigName() string {
	return "dataplane"
}

var _ config.Config = (*Timing)(nil)

// Timing holds the timeouts and delays of a run.
type Timing struct {
	PollTimeout    util.DurWrap `toml:"poll_timeout,omitempty"`
	VxlanDelay     util.DurWrap `toml:"vxlan_delay,omitempty"`
	LearnDelay     util.DurWrap `toml:"learn_delay,omitempty"`
	WarmupInterval util.DurWrap `toml:"warmup_interval,omitempty"`
	WarmupTimeout  util.DurWrap `toml:"warmup_timeout,omitempty"`
	// RunTimeout bounds the whole run. Zero means no bound.
	RunTimeout util.DurWrap `toml:"run_timeout,omitempty"`
}

// InitDefaults sets the defaults of all durations except RunTimeout.
func (cfg *Timing) InitDefaults() {
	initDurWrap(&cfg.PollTimeout, scenario.DefaultPollTimeout)
	initDurWrap(&cfg.VxlanDelay, scenario.DefaultVxlanDelay)
	initDurWrap(&cfg.LearnDelay, scenario.DefaultLearnDelay)
	initDurWrap(&cfg.WarmupInterval, warmup.DefaultInterval)
	initDurWrap(&cfg.WarmupTimeout, warmup.DefaultTimeout)
}

// Validate checks that the durations are in range.
func (cfg *Timing) Validate() error {
	for _, d := range []struct {
		name  string
		value util.DurWrap
	}{
		{"poll_timeout", cfg.PollTimeout},
		{"warmup_interval", cfg.WarmupInterval},
		{"warmup_timeout", cfg.WarmupTimeout},
	} {
		if d.value.Duration <= 0 {
			return serrors.New("duration must be positive", d.name, d.value)
		}
	}
	for _, d := range []struct {
		name  string
		value util.DurWrap
	}{
		{"vxlan_delay", cfg.VxlanDelay},
		{"learn_delay", cfg.LearnDelay},
		{"run_timeout", cfg.RunTimeout},
	} {
		if d.value.Duration < 0 {
			return serrors.New("duration must not be negative", d.name, d.value)
		}
	}
	return nil
}

// Sample writes the sample of the timing block.
func (cfg *Timing) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, timingSample)
}

// ConfigName is the toml key of the timing block.
func (cfg *Timing) ConfigName() string {
	return "timing"
}

var _ config.Config = (*Metrics)(nil)

// Metrics configures the metrics textfile.
type Metrics struct {
	config.NoDefaulter
	config.NoValidator
	// Textfile is the path the metrics are written to after the run. If
	// empty, no metrics are written.
	Textfile string `toml:"textfile,omitempty"`
	// Process adds the Go runtime and process metrics.
	Process bool `toml:"process,omitempty"`
}

// Sample writes the sample of the metrics block.
func (cfg *Metrics) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, metricsSample)
}

// ConfigName is the toml key of the metrics block.
func (cfg *Metrics) ConfigName() string {
	return "metrics"
}

var _ config.Config = (*Report)(nil)

// Report configures the report printed at the end of the run.
type Report struct {
	// Format is one of human, json and yaml.
	Format string `toml:"format,omitempty"`
	// Output is the file the report is written to. If empty, it is written
	// to stdout.
	Output string `toml:"output,omitempty"`
}

// InitDefaults sets the default format.
func (cfg *Report) InitDefaults() {
	if cfg.Format == "" {
		cfg.Format = DefaultReportFormat
	}
}

// Validate checks that the format is known.
func (cfg *Report) Validate() error {
	switch cfg.Format {
	case "human", "json", "yaml":
		return nil
	default:
		return serrors.New("unsupported report format", "format", cfg.Format)
	}
}

// Sample writes the sample of the report block.
func (cfg *Report) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, reportSample)
}

// ConfigName is the toml key of the report block.
func (cfg *Report) ConfigName() string {
	return "report"
}

func initDurWrap(w *util.DurWrap, def time.Duration) {
	if w.Duration == 0 {
		w.Duration = def
	}
}
