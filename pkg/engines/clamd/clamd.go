// Copyright 2023 Meta Platforms, Inc. and affiliates.
//
// Redistribution and use in source and binary forms, with or without modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice, this list of conditions and the following disclaimer in the documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its contributors may be used to endorse or promote products derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

// Package clamd implements an engine adapter speaking the native protocol
// of the ClamAV daemon over a Unix socket.
package clamd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/failure"
)

const (
	// Kind is the engine kind in the configuration.
	Kind = "clamd"

	defaultSocket  = "/var/run/clamav/clamd.ctl"
	defaultTimeout = 5 * time.Minute
)

// Engine is a clamd client. Each request uses its own connection.
type Engine struct {
	name    string
	socket  string
	timeout time.Duration
	dialer  net.Dialer
}

// New returns a clamd Engine.
func New(cfg config.Engine) (*Engine, error) {
	socket := cfg.Socket
	if socket == "" {
		socket = defaultSocket
	}
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Engine{
		name:    cfg.Name,
		socket:  socket,
		timeout: timeout,
	}, nil
}

// ID implements engines.Engine.
func (e *Engine) ID() string {
	return e.name
}

// ErrScan implements "error", for the description see Error.
type ErrScan struct {
	Path    string
	Message string
}

func (err ErrScan) Error() string {
	return fmt.Sprintf("clamd was unable to scan '%s': %s", err.Path, err.Message)
}

// Scan implements engines.Engine.
func (e *Engine) Scan(ctx context.Context, path string) (map[string]string, error) {
	if strings.ContainsAny(path, "\x00\n") {
		return nil, failure.New(failure.KindEngine, e.name, fmt.Errorf("invalid path '%q'", path))
	}
	replies, err := e.request(ctx, "SCAN "+path)
	if err != nil {
		return nil, failure.New(failure.KindEngine, e.name, err)
	}

	result := map[string]string{}
	for _, reply := range replies {
		object, status, ok := cutLast(reply, ": ")
		if !ok {
			return nil, failure.New(failure.KindEngine, e.name, fmt.Errorf("unexpected reply '%s'", reply))
		}
		switch {
		case status == "OK":
		case strings.HasSuffix(status, " FOUND"):
			result[object] = strings.TrimSuffix(status, " FOUND")
		case strings.HasSuffix(status, " ERROR"):
			return nil, failure.New(failure.KindEngine, e.name, ErrScan{Path: object, Message: strings.TrimSuffix(status, " ERROR")})
		default:
			logger.FromCtx(ctx).Warnf("unexpected clamd reply '%s'", reply)
		}
	}
	return result, nil
}

// cutLast splits s around the last separator: signature names never
// contain ": " while paths might.
func cutLast(s, sep string) (string, string, bool) {
	idx := strings.LastIndex(s, sep)
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+len(sep):], true
}

// Ping checks that the daemon is alive.
func (e *Engine) Ping(ctx context.Context) error {
	replies, err := e.request(ctx, "PING")
	if err != nil {
		return err
	}
	if len(replies) != 1 || replies[0] != "PONG" {
		return fmt.Errorf("unexpected reply to PING: %q", replies)
	}
	return nil
}

// Version returns the version string of the daemon.
func (e *Engine) Version(ctx context.Context) (string, error) {
	replies, err := e.request(ctx, "VERSION")
	if err != nil {
		return "", err
	}
	if len(replies) == 0 {
		return "", fmt.Errorf("empty reply to VERSION")
	}
	return replies[0], nil
}

// request sends a null-terminated ("z"-prefixed) command and returns the
// null-terminated replies.
func (e *Engine) request(ctx context.Context, command string) (_ []string, err error) {
	ctx, cancelFn := context.WithTimeout(ctx, e.timeout)
	defer cancelFn()

	conn, err := e.dialer.DialContext(ctx, "unix", e.socket)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to clamd at '%s': %w", e.socket, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("unable to set a deadline: %w", err)
		}
	}
	// interrupt blocked I/O on cancellation
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := io.WriteString(conn, "z"+command+"\x00"); err != nil {
		return nil, fmt.Errorf("unable to send command '%s': %w", command, err)
	}

	var replies []string
	scanner := bufio.NewScanner(conn)
	scanner.Split(splitNull)
	for scanner.Scan() {
		reply := strings.TrimSpace(scanner.Text())
		if reply == "" {
			continue
		}
		replies = append(replies, reply)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read the reply to '%s': %w", command, err)
	}
	return replies, nil
}

func splitNull(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if idx := bytes.IndexByte(data, 0); idx >= 0 {
		return idx + 1, data[:idx], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
