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

package staticanalysis

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/sampleflow/pkg/config"
)

func writeScript(t *testing.T, dir, name, body string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0700))
	return path
}

func TestAnalyzeBasic(t *testing.T) {
	data := append([]byte("MZ\x90\x00"), bytes.Repeat([]byte{0x41}, 2000)...)
	a := New(config.DefaultConfig().Static)

	report, err := a.Analyze(context.Background(), data, "")
	require.NoError(t, err)
	require.Equal(t, "application/vnd.microsoft.portable-executable", report.Magic.MimeType)
	require.Equal(t, ".exe", report.Magic.Extension)
	require.Equal(t, []string{"application/octet-stream"}, report.Magic.Parents)
	require.Equal(t, int64(len(data)), report.Size)
	require.Len(t, report.Digests.SHA256, 64)
	require.False(t, report.IsArchive)
	require.True(t, strings.HasPrefix(report.Hex, "00000000  4d 5a 90 00 41 41"))
	// 1024 bytes are 64 lines of 16 bytes
	require.Len(t, strings.Split(strings.TrimSuffix(report.Hex, "\n"), "\n"), 64)
	require.Nil(t, report.Exif)
	require.Nil(t, report.TrID)
}

func TestAnalyzeArchive(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("a.exe")
	require.NoError(t, err)
	_, err = f.Write([]byte("MZ"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	report, err := New(config.DefaultConfig().Static).Analyze(context.Background(), buf.Bytes(), "")
	require.NoError(t, err)
	require.Equal(t, "application/zip", report.Magic.MimeType)
	require.True(t, report.IsArchive)
}

func TestAnalyzeExternalTools(t *testing.T) {
	dir := t.TempDir()
	samplePath := filepath.Join(dir, "sample.exe")
	require.NoError(t, os.WriteFile(samplePath, []byte("MZ\x90\x00"), 0600))

	cfg := config.StaticConfig{
		ExifToolPath: writeScript(t, dir, "exiftool", `echo '[{"SourceFile":"'"$3"'","FileType":"Win32 EXE"}]'; exit 1`),
		TrIDPath: writeScript(t, dir, "trid", `cat <<'EOT'
TrID/32 - File Identifier v2.24 - (C) 2003-16 By M.Pontello

Collecting data from file: sample.exe
 49.1% (.EXE) Win32 Executable MS Visual C++ (generic) (31206/45/13)
 16.3% (.DLL) Win32 Dynamic Link Library (generic) (6578/25/2)
EOT`),
		HexDumpSize: 16,
		ToolTimeout: config.Duration(10 * time.Second),
	}

	report, err := New(cfg).Analyze(context.Background(), []byte("MZ\x90\x00"), samplePath)
	require.NoError(t, err)
	require.JSONEq(t, `[{"SourceFile":"`+samplePath+`","FileType":"Win32 EXE"}]`, string(report.Exif))
	require.Equal(t, []TrIDMatch{
		{Percent: "49.1%", Extension: ".EXE", Description: "Win32 Executable MS Visual C++ (generic) (31206/45/13)"},
		{Percent: "16.3%", Extension: ".DLL", Description: "Win32 Dynamic Link Library (generic) (6578/25/2)"},
	}, report.TrID)
}

func TestAnalyzeMissingTools(t *testing.T) {
	dir := t.TempDir()
	samplePath := filepath.Join(dir, "sample.bin")
	require.NoError(t, os.WriteFile(samplePath, []byte("data"), 0600))

	cfg := config.StaticConfig{
		ExifToolPath: filepath.Join(dir, "no-exiftool"),
		TrIDPath:     writeScript(t, dir, "trid", `echo broken >&2; exit 2`),
	}
	report, err := New(cfg).Analyze(context.Background(), []byte("data"), samplePath)
	require.NoError(t, err)
	require.Nil(t, report.Exif)
	require.Nil(t, report.TrID)
	require.True(t, strings.HasPrefix(report.Hex, "00000000  64 61 74 61 "), report.Hex)
	require.True(t, strings.HasSuffix(report.Hex, "|data|\n"), report.Hex)
}
