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

// Package device runs commands on the switch under test over SSH.
package device

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/scionproto/vxlan-decap/pkg/log"
	"github.com/scionproto/vxlan-decap/pkg/private/serrors"
)

// DefaultPort is the SSH port used if the host does not specify one.
const DefaultPort = "22"

// Commander runs a command on the device and returns its output lines.
type Commander interface {
	Exec(ctx context.Context, cmd string) ([]string, error)
}

// Config is the SSH client configuration.
type Config struct {
	// Host is the device address, optionally with a port.
	Host string
	User string
	// Password is tried first.
	Password string
	// AltPassword is tried if the device rejects Password. Empty disables
	// the fallback.
	AltPassword string
	// KnownHosts is the path of a known_hosts file. If empty, the host key is
	// not verified.
	KnownHosts string
	// Timeout bounds connection establishment. Zero means no timeout.
	Timeout time.Duration
}

func (c Config) addr() string {
	if _, _, err := net.SplitHostPort(c.Host); err == nil {
		return c.Host
	}
	return net.JoinHostPort(strings.Trim(c.Host, "[]"), DefaultPort)
}

func (c Config) clientConfig(logger log.Logger) (*ssh.ClientConfig, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if c.KnownHosts != "" {
		cb, err := knownhosts.New(c.KnownHosts)
		if err != nil {
			return nil, serrors.Wrap("loading known hosts", err, "file", c.KnownHosts)
		}
		hostKeyCallback = cb
	}
	passwords := []string{c.Password}
	if c.AltPassword != "" {
		passwords = append(passwords, c.AltPassword)
	}
	attempt := 0
	password := ssh.PasswordCallback(func() (string, error) {
		if attempt >= len(passwords) {
			return "", serrors.New("no password left")
		}
		if attempt > 0 {
			logger.Info("Authentication failed, retrying with alternate password",
				"user", c.User)
		}
		p := passwords[attempt]
		attempt++
		return p, nil
	})
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{ssh.RetryableAuthMethod(password, len(passwords))},
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.Timeout,
	}, nil
}

// Client is an SSH connection to the device. It implements Commander.
type Client struct {
	ssh  *ssh.Client
	addr string
}

// Dial connects to the device and authenticates with the configured
// password. If the device rejects it, the alternate password is tried once
// on the same connection.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	logger := log.FromCtx(ctx)
	clientCfg, err := cfg.clientConfig(logger)
	if err != nil {
		return nil, err
	}
	addr := cfg.addr()
	dialer := net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, serrors.Wrap("connecting to device", err, "addr", addr)
	}
	deadline, ok := ctx.Deadline()
	if cfg.Timeout > 0 {
		if d := time.Now().Add(cfg.Timeout); !ok || d.Before(deadline) {
			deadline, ok = d, true
		}
	}
	if ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if !stop() {
		if err == nil {
			c.Close()
		}
		return nil, serrors.Wrap("connecting to device", ctx.Err(), "addr", addr)
	}
	if err != nil {
		conn.Close()
		return nil, serrors.Wrap("ssh handshake", err, "addr", addr, "user", cfg.User)
	}
	_ = conn.SetDeadline(time.Time{})
	logger.Debug("Connected to device", "addr", addr, "user", cfg.User)
	return &Client{ssh: ssh.NewClient(c, chans, reqs), addr: addr}, nil
}

// Exec runs cmd in a new session and returns its standard output split into
// lines. If the command exits with a non-zero status, the captured lines are
// returned together with an error.
func (c *Client) Exec(ctx context.Context, cmd string) ([]string, error) {
	sess, err := c.ssh.NewSession()
	if err != nil {
		return nil, serrors.Wrap("creating session", err, "addr", c.addr)
	}
	defer sess.Close()
	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		defer log.HandlePanic()
		done <- sess.Run(cmd)
	}()
	select {
	case <-ctx.Done():
		sess.Close()
		return nil, serrors.Wrap("executing command", ctx.Err(), "cmd", cmd)
	case err = <-done:
	}
	lines := splitLines(stdout.String())
	var exitErr *ssh.ExitError
	switch {
	case errors.As(err, &exitErr):
		return lines, serrors.Wrap("command failed", err, "cmd", cmd,
			"exit_status", exitErr.ExitStatus(), "stderr", strings.TrimSpace(stderr.String()))
	case err != nil:
		return lines, serrors.Wrap("executing command", err, "cmd", cmd)
	}
	log.FromCtx(ctx).Debug("Executed command", "cmd", cmd, "lines", len(lines))
	return lines, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.ssh.Close()
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\r\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}
