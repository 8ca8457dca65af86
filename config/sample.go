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

package config

const generalSample = `
# The topology description of the device under test, as generated by the
# test framework. (required)
config_file = "/tmp/vxlan_decap.json"

# Whether VXLAN decapsulation is expected to work. If false, the Vxlan
# scenario passes only if no frame is decapsulated. (default false)
vxlan_enabled = false

# The number of frames sent per probe. (default 1)
count = 1

# Whether the device is one of two ToRs in active-active mode. In this mode,
# the standby links of the peer ToR are part of the network ports.
# (default false)
is_active_active_dualtor = false
`

const deviceSample = `
# Host name or address of the device under test, optionally with a port.
# Can be set with the DUT_HOSTNAME environment variable. (required)
dut_hostname = "10.250.0.101"

# The admin user. Can be set with the SONIC_ADMIN_USER environment variable.
# (required)
sonic_admin_user = "admin"

# The password of the admin user. Can be set with the SONIC_ADMIN_PASSWORD
# environment variable. (required)
sonic_admin_password = "password"

# The password tried if the password is rejected. Can be set with the
# SONIC_ADMIN_ALT_PASSWORD environment variable. (required)
sonic_admin_alt_password = "YourPaSsWoRd"

# The known_hosts file used to verify the host key of the device. If empty,
# the host key is not verified. (default "")
known_hosts = ""

# Timeout for connecting to the device. (default 30s)
timeout = "30s"
`

const dataplaneSample = `
# The name of the interface of a port. The port number replaces the %d.
# (default "eth%d")
interface_format = "eth%d"

# The number of captured frames queued per port. If the queue is full, the
# oldest frame is dropped. (default 100)
queue_limit = 100
`

const timingSample = `
# The time a probe waits for the expected frames. (default 20s)
poll_timeout = "20s"

# The delay before the probes of each ingress port of the Vxlan scenario.
# (default 1s)
vxlan_delay = "1s"

# The delay after every frame of the learning traffic. (default 500ms)
learn_delay = "500ms"

# The time between two checks of the device tables during the warm-up.
# (default 3s)
warmup_interval = "3s"

# The time a test case has to become ready during the warm-up. (default 300s)
warmup_timeout = "5m"

# The maximum duration of the whole run. Zero means unbounded. (default 0s)
run_timeout = "0s"
`

const metricsSample = `
# The file the metrics are written to at the end of the run, in the
# Prometheus text format. If empty, no metrics are written. (default "")
textfile = ""

# Whether the Go runtime and process metrics are included. (default false)
process = false
`

const reportSample = `
# The format of the report (human|json|yaml). (default human)
format = "human"

# The file the report is written to. If empty, the report is written to
# stdout. (default "")
output = ""
`
