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

// Package xtest contains helpers shared by the tests.
package xtest

import (
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// MustParseMAC parses s and returns the hardware address. It panics if s is
// not a valid MAC address.
func MustParseMAC(s string) net.HardwareAddr {
	mac, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return mac
}

// MustParseAddrs parses the addresses. It panics on the first invalid one.
func MustParseAddrs(entries ...string) []netip.Addr {
	result := make([]netip.Addr, 0, len(entries))
	for _, e := range entries {
		result = append(result, netip.MustParseAddr(e))
	}
	return result
}

// MustWriteTempFile writes content to a file with the given base name in a
// temporary directory of the test and returns its path.
func MustWriteTempFile(t testing.TB, baseName string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), baseName)
	require.NoError(t, os.WriteFile(path, content, 0600))
	return path
}
