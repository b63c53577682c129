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

// Package savapi implements an engine adapter for the line-oriented
// SAVAPI socket protocol, where every response line is
// "<3-digit status code> <text>".
package savapi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gabriel-vasile/mimetype"

	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/failure"
)

const (
	// Kind is the engine kind in the configuration.
	Kind = "savapi"

	defaultAddress = "127.0.0.1:9999"
	defaultTimeout = 5 * time.Minute

	// defaultCleanGrace is how long to wait for more lines after a
	// CodeClean line before the scan is considered finished.
	defaultCleanGrace = 2 * time.Second

	// maxLineLength protects from a peer which never sends a newline.
	maxLineLength = 64 << 10
)

// archiveMIMEs are the media types scanned with ARCHIVE_SCAN enabled.
var archiveMIMEs = []string{
	"application/zip",
	"application/x-tar",
	"application/x-rar-compressed",
}

// Status is the summary of a scan session.
type Status int

const (
	StatusClean = Status(iota)
	StatusAlert
	StatusError
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusAlert:
		return "alert"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("unknown_status_%d", int(s))
}

// Outcome is the result of a scan session.
type Outcome struct {
	Status   Status
	Events   []Event
	Findings map[string]string
}

// Engine is a SAVAPI client. Each scan uses its own connection, which is
// closed when the scan ends.
type Engine struct {
	name       string
	address    string
	product    string
	timeout    time.Duration
	cleanGrace time.Duration
	dialer     net.Dialer
}

// New returns a SAVAPI Engine.
func New(cfg config.Engine) (*Engine, error) {
	address := cfg.Address
	if address == "" {
		address = defaultAddress
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		return nil, fmt.Errorf("invalid address '%s': %w", address, err)
	}
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Engine{
		name:       cfg.Name,
		address:    address,
		product:    cfg.Product,
		timeout:    timeout,
		cleanGrace: defaultCleanGrace,
	}, nil
}

// ID implements engines.Engine.
func (e *Engine) ID() string {
	return e.name
}

// Scan implements engines.Engine.
func (e *Engine) Scan(ctx context.Context, path string) (map[string]string, error) {
	outcome, err := e.Session(ctx, path, isArchive(path))
	if err != nil {
		return nil, failure.New(failure.KindEngine, e.name, err)
	}
	if outcome.Status == StatusError {
		last := outcome.Events[len(outcome.Events)-1]
		return nil, failure.New(failure.KindEngine, e.name, fmt.Errorf("scan failed: %d %s", last.Code, last.Text))
	}
	return outcome.Findings, nil
}

func isArchive(path string) bool {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	for _, archiveMIME := range archiveMIMEs {
		if mime.Is(archiveMIME) {
			return true
		}
	}
	return false
}

// session is a single connection to the engine.
type session struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (s *session) readEvent() (Event, error) {
	var line []byte
	for {
		chunk, isPrefix, err := s.reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return Event{}, fmt.Errorf("unable to read a response line: %w", err)
		}
		line = append(line, chunk...)
		if len(line) > maxLineLength {
			return Event{}, fmt.Errorf("response line is longer than %d bytes", maxLineLength)
		}
		if !isPrefix {
			break
		}
	}
	return ParseLine(string(line))
}

func (s *session) send(command string) error {
	if _, err := io.WriteString(s.conn, command+"\n"); err != nil {
		return fmt.Errorf("unable to send '%s': %w", command, err)
	}
	return nil
}

// command sends a command and reads the single-line response.
func (s *session) command(command string) (Event, error) {
	if err := s.send(command); err != nil {
		return Event{}, err
	}
	ev, err := s.readEvent()
	if err != nil {
		return Event{}, fmt.Errorf("no response to '%s': %w", command, err)
	}
	if ev.Code == CodeError {
		return ev, fmt.Errorf("'%s' failed: %s", command, ev.Text)
	}
	return ev, nil
}

// Session runs a complete scan session: banner, settings, SCAN until a
// terminal code, QUIT. No lines are read after the terminal code. A clean
// file is answered with a single CodeClean line and nothing else, so the
// scan also ends when the engine stays silent for cleanGrace after
// a CodeClean line.
func (e *Engine) Session(ctx context.Context, path string, archiveMode bool) (_ *Outcome, err error) {
	if strings.ContainsAny(path, "\r\n") {
		return nil, fmt.Errorf("invalid path '%q'", path)
	}
	log := logger.FromCtx(ctx)
	ctx, cancelFn := context.WithTimeout(ctx, e.timeout)
	defer cancelFn()

	conn, err := e.dialer.DialContext(ctx, "tcp", e.address)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to '%s': %w", e.address, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("unable to set a deadline: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	s := &session{conn: conn, reader: bufio.NewReaderSize(conn, 4096)}

	banner, err := s.readEvent()
	if err != nil {
		return nil, fmt.Errorf("invalid banner: %w", err)
	}
	log.Debugf("connected to %s: %d %s", e.address, banner.Code, banner.Text)

	// From here on the session is usable, QUIT releases the engine slot
	// unless the connection itself is broken.
	usable := true
	defer func() {
		if !usable {
			return
		}
		if quitErr := s.send("QUIT"); quitErr != nil {
			log.Warnf("unable to QUIT the session with %s: %v", e.address, quitErr)
		}
	}()

	if e.product != "" {
		if _, err := s.command("SET PRODUCT " + e.product); err != nil {
			return nil, err
		}
	}
	if archiveMode {
		if _, err := s.command("SET ARCHIVE_SCAN 1"); err != nil {
			return nil, err
		}
	}

	if err := s.send("SCAN " + path); err != nil {
		usable = false
		return nil, err
	}

	outcome := &Outcome{
		Status:   StatusClean,
		Findings: map[string]string{},
	}
	deadline, _ := ctx.Deadline()
	lastCode := Code(0)
	for {
		if lastCode == CodeClean {
			graceDeadline := time.Now().Add(e.cleanGrace)
			if ctx.Err() == nil && graceDeadline.Before(deadline) {
				_ = conn.SetReadDeadline(graceDeadline)
			}
		}
		ev, err := s.readEvent()
		if err != nil {
			var netErr net.Error
			if lastCode == CodeClean && ctx.Err() == nil && errors.As(err, &netErr) && netErr.Timeout() {
				break
			}
			if _, ok := err.(ErrInvalidLine); !ok {
				usable = false
			}
			return nil, err
		}
		if lastCode == CodeClean && ctx.Err() == nil {
			_ = conn.SetReadDeadline(deadline)
		}
		lastCode = ev.Code
		outcome.Events = append(outcome.Events, ev)
		switch {
		case ev.Code == CodeError || ev.Code == CodeTimeout:
			outcome.Status = StatusError
		case ev.Code.IsAlert():
			outcome.Status = StatusAlert
			if object, threat, ok := ev.Finding(); ok {
				outcome.Findings[object] = threat
			}
		}
		if ev.Code.IsTerminal() {
			break
		}
	}

	if outcome.Status == StatusAlert && len(outcome.Findings) == 0 {
		outcome.Findings[path] = firstAlertText(outcome.Events)
	}
	return outcome, nil
}

func firstAlertText(events []Event) string {
	for _, ev := range events {
		if ev.Code.IsAlert() && ev.Text != "" {
			return ev.Text
		}
	}
	return CodeAlert.String()
}
