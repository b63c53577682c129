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

package savapi

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/sampleflow/pkg/config"
	"github.com/immune-gmbh/sampleflow/pkg/failure"
)

// fakeServer is a scripted SAVAPI peer. It records every received line.
type fakeServer struct {
	listener net.Listener
	locker   sync.Mutex
	received []string
	closed   chan struct{}
}

// newFakeServer starts a server which answers "SET ..." commands with
// "100 OK" and answers SCAN with the given chunks written one by one.
func newFakeServer(t *testing.T, scanReply []string) *fakeServer {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &fakeServer{listener: l, closed: make(chan struct{})}
	t.Cleanup(func() { _ = l.Close() })

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer close(srv.closed)
		defer conn.Close()

		_, _ = conn.Write([]byte("100 SAVAPI:4.0\n"))
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\n")
			srv.locker.Lock()
			srv.received = append(srv.received, line)
			srv.locker.Unlock()
			switch {
			case strings.HasPrefix(line, "SET "):
				_, _ = conn.Write([]byte("100 " + strings.TrimPrefix(line, "SET ") + "\n"))
			case strings.HasPrefix(line, "SCAN "):
				for _, chunk := range scanReply {
					_, _ = conn.Write([]byte(chunk))
					time.Sleep(10 * time.Millisecond)
				}
			case line == "QUIT":
				return
			}
		}
	}()
	return srv
}

func (srv *fakeServer) Received(t *testing.T) []string {
	select {
	case <-srv.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("the session was not closed")
	}
	srv.locker.Lock()
	defer srv.locker.Unlock()
	return append([]string{}, srv.received...)
}

func writeZip(t *testing.T) string {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("member.exe")
	require.NoError(t, err)
	_, err = fw.Write([]byte("MZ"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	path := filepath.Join(t.TempDir(), "sample")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func newEngine(t *testing.T, srv *fakeServer, product string) *Engine {
	e, err := New(config.Engine{Name: "avira", Kind: Kind, Address: srv.listener.Addr().String(), Product: product, Timeout: config.Duration(5 * time.Second)})
	require.NoError(t, err)
	e.cleanGrace = 300 * time.Millisecond
	return e
}

func TestSessionAlertInArchiveMode(t *testing.T) {
	// the lines are split into fragments to check that they are reassembled
	srv := newFakeServer(t, []string{
		"200 cle", "an\n",
		"310 alert\n",
		"319 scan finished, alert found\n499 must not be read\n",
	})
	e := newEngine(t, srv, "10776")
	path := writeZip(t)

	outcome, err := e.Session(context.Background(), path, isArchive(path))
	require.NoError(t, err)
	require.Equal(t, StatusAlert, outcome.Status)
	require.Equal(t, []Event{
		{Code: CodeClean, Text: "clean"},
		{Code: CodeAlert, Text: "alert"},
		{Code: CodeFinishedAlert, Text: "scan finished, alert found"},
	}, outcome.Events)
	require.Equal(t, map[string]string{path: "alert"}, outcome.Findings)

	require.Equal(t, []string{
		"SET PRODUCT 10776",
		"SET ARCHIVE_SCAN 1",
		"SCAN " + path,
		"QUIT",
	}, srv.Received(t))
}

func TestSessionAlertAfterCleanLine(t *testing.T) {
	srv := newFakeServer(t, []string{
		"200 clean\n",
		"310 alert\n",
		"319 scan finished, alert found\n499 must not be read\n",
	})
	e := newEngine(t, srv, "10776")
	path := filepath.Join(t.TempDir(), "sample.exe")
	require.NoError(t, os.WriteFile(path, []byte("MZ\x90\x00"), 0644))
	require.False(t, isArchive(path))

	outcome, err := e.Session(context.Background(), path, false)
	require.NoError(t, err)
	require.Equal(t, StatusAlert, outcome.Status)
	require.Equal(t, []Event{
		{Code: CodeClean, Text: "clean"},
		{Code: CodeAlert, Text: "alert"},
		{Code: CodeFinishedAlert, Text: "scan finished, alert found"},
	}, outcome.Events)
	require.Equal(t, map[string]string{path: "alert"}, outcome.Findings)

	require.Equal(t, []string{
		"SET PRODUCT 10776",
		"SCAN " + path,
		"QUIT",
	}, srv.Received(t))
}

func TestScanClean(t *testing.T) {
	srv := newFakeServer(t, []string{"200 /tmp/sample.txt\n"})
	e := newEngine(t, srv, "")

	findings, err := e.Scan(context.Background(), filepath.Join(t.TempDir(), "missing-so-not-an-archive"))
	require.NoError(t, err)
	require.Empty(t, findings)
	received := srv.Received(t)
	require.Len(t, received, 2)
	require.Equal(t, "QUIT", received[1])
}

func TestScanFindings(t *testing.T) {
	srv := newFakeServer(t, []string{
		"310 /tmp/a.exe <<< TR/Dropper.Gen;trojan;Contains a trojan\n",
		"420 /tmp/b.exe <<< W97M/Macro.A;macro;repairable\n",
		"319 scan finished\n",
	})
	e := newEngine(t, srv, "")

	findings, err := e.Scan(context.Background(), "/tmp/a.exe")
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"/tmp/a.exe": "TR/Dropper.Gen",
		"/tmp/b.exe": "W97M/Macro.A",
	}, findings)
	_ = srv.Received(t)
}

func TestScanError(t *testing.T) {
	srv := newFakeServer(t, []string{"350 file not accessible\n"})
	e := newEngine(t, srv, "")

	_, err := e.Scan(context.Background(), "/tmp/a.exe")
	require.Error(t, err)
	require.Equal(t, failure.KindEngine, failure.KindOf(err))
	received := srv.Received(t)
	require.Equal(t, "QUIT", received[len(received)-1])
}

func TestScanProtocolError(t *testing.T) {
	srv := newFakeServer(t, []string{"garbage\n"})
	e := newEngine(t, srv, "")

	_, err := e.Scan(context.Background(), "/tmp/a.exe")
	require.ErrorAs(t, err, &ErrInvalidLine{})
	received := srv.Received(t)
	require.Equal(t, "QUIT", received[len(received)-1])
}

func TestScanConnectionLost(t *testing.T) {
	srv := newFakeServer(t, []string{"310 partial line without newline"})
	e := newEngine(t, srv, "")

	ctx, cancelFn := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancelFn()
	_, err := e.Scan(ctx, "/tmp/a.exe")
	require.Error(t, err)
	require.Equal(t, failure.KindEngine, failure.KindOf(err))
}

func TestScanUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := l.Addr().String()
	require.NoError(t, l.Close())

	e, err := New(config.Engine{Name: "avira", Kind: Kind, Address: address})
	require.NoError(t, err)
	_, err = e.Scan(context.Background(), "/tmp/a.exe")
	require.Equal(t, failure.KindEngine, failure.KindOf(err))
}

func TestParseLine(t *testing.T) {
	ev, err := ParseLine("319 scan finished, alert found\r\n")
	require.NoError(t, err)
	require.Equal(t, Event{Code: CodeFinishedAlert, Text: "scan finished, alert found"}, ev)

	for _, line := range []string{"", "31 short", "abc text", "999 unknown code", "3190 long"} {
		_, err := ParseLine(line)
		require.Error(t, err, line)
	}

	require.False(t, CodeClean.IsTerminal())
	require.False(t, CodeAlert.IsTerminal())
	for _, code := range []Code{CodeFinishedAlert, CodeError, CodeTimeout, CodeCleanArchive} {
		require.True(t, code.IsTerminal(), code)
	}
}
