// Copyright 2021 Anapaya Systems
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

// Package flag contains command line flag helpers shared by the commands.
package flag

import (
	"os"
	"sync"

	"github.com/spf13/pflag"
)

// Environment variables consulted by DeviceEnvironment.
const (
	EnvHostname    = "DUT_HOSTNAME"
	EnvUser        = "SONIC_ADMIN_USER"
	EnvPassword    = "SONIC_ADMIN_PASSWORD"
	EnvAltPassword = "SONIC_ADMIN_ALT_PASSWORD"
)

type stringVal string

func (v *stringVal) Set(val string) error {
	*v = stringVal(val)
	return nil
}

func (v *stringVal) Type() string   { return "string" }
func (v *stringVal) String() string { return string(*v) }

// secretVal is a string flag whose value is never printed in usage or
// error messages.
type secretVal string

func (v *secretVal) Set(val string) error {
	*v = secretVal(val)
	return nil
}

func (v *secretVal) Type() string { return "secret" }
func (v *secretVal) String() string {
	if *v == "" {
		return ""
	}
	return "****"
}

// Credentials identifies the device under test and how to log into it.
type Credentials struct {
	Hostname    string
	User        string
	Password    string
	AltPassword string
}

// DeviceEnvironment resolves the device credentials from command line flags,
// environment variables and the configuration file.
type DeviceEnvironment struct {
	values   Credentials
	flags    [4]*pflag.Flag
	env      [4]*string
	lookupFn func(string) (string, bool)

	mtx sync.Mutex
}

// Register registers the command line flags. This should be called when command
// line flags are set up, before any command that accesses the values is called.
// It is safe to not call this at all, which means command line flag values are
// not considered.
func (e *DeviceEnvironment) Register(flagSet *pflag.FlagSet) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	e.flags[0] = flagSet.VarPF((*stringVal)(&e.values.Hostname), "dut-hostname", "",
		"Host name or address of the device under test. (env "+EnvHostname+")")
	e.flags[1] = flagSet.VarPF((*stringVal)(&e.values.User), "user", "",
		"User to log into the device under test. (env "+EnvUser+")")
	e.flags[2] = flagSet.VarPF((*secretVal)(&e.values.Password), "password", "",
		"Password of the device user. (env "+EnvPassword+")")
	e.flags[3] = flagSet.VarPF((*secretVal)(&e.values.AltPassword), "alt-password", "",
		"Alternate password, tried if the password is rejected. (env "+EnvAltPassword+")")
}

// LoadExternalVars loads the environment variables. Missing variables are not
// an error. This needs to be called before Resolve, otherwise the environment
// variables are not respected.
func (e *DeviceEnvironment) LoadExternalVars() error {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	lookup := e.lookupFn
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for i, name := range []string{EnvHostname, EnvUser, EnvPassword, EnvAltPassword} {
		if v, ok := lookup(name); ok {
			e.env[i] = &v
		}
	}
	return nil
}

// Resolve returns the credentials. Each value is taken from one of the
// following sources with the precedence as listed:
//  1. Command line flag
//  2. Environment variable
//  3. The value passed in, usually from the configuration file.
func (e *DeviceEnvironment) Resolve(file Credentials) Credentials {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	flagVals := []string{
		e.values.Hostname, e.values.User, e.values.Password, e.values.AltPassword,
	}
	res := []*string{&file.Hostname, &file.User, &file.Password, &file.AltPassword}
	for i, dst := range res {
		switch {
		case e.flags[i] != nil && e.flags[i].Changed:
			*dst = flagVals[i]
		case e.env[i] != nil:
			*dst = *e.env[i]
		}
	}
	return file
}
