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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[storage]
rdbms_driver = "mysql"
rdbms_dsn = "sampleflow:secret@tcp(db:3306)/sampleflow?parseTime=true"
blob_storage_url = "fs:///srv/samples"

[archive]
max_depth = 2
tool_timeout = "30s"

[scanner]
engine_timeout = "90s"

[[engines]]
name = "eset"
kind = "eset"
path = "/opt/eset/esets/sbin/esets_scan"
args = "--clean-mode=none --no-log-all"

[[engines]]
name = "clamav"
kind = "clamd"
socket = "/var/run/clamav/clamd.ctl"
timeout = "10s"

[[engines]]
name = "avira"
kind = "savapi"
address = "127.0.0.1:4444"
product = "10776"

[sandbox.vxstream]
base_url = "https://vxstream.example.org/api/"
api_key = "key"
api_secret = "secret"
default_environment = "100"

[poller]
interval = "5s"
max_attempts = 10
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	require.Equal(t, "mysql", cfg.Storage.RDBMSDriver)
	require.Equal(t, []string{"eset", "clamav", "avira"}, cfg.EngineNames())
	require.Equal(t, 2, cfg.Archive.MaxDepth)
	require.Equal(t, 1024, cfg.Archive.MaxMembers)
	require.Equal(t, 30*time.Second, cfg.Archive.ToolTimeout.Std())

	require.Equal(t, 90*time.Second, cfg.Engines[0].Timeout.Std())
	require.Equal(t, 10*time.Second, cfg.Engines[1].Timeout.Std())
	require.Equal(t, "/var/run/clamav/clamd.ctl", cfg.Engines[1].Socket)
	require.Equal(t, "10776", cfg.Engines[2].Product)

	require.Equal(t, "vxstream", cfg.Sandbox["vxstream"].Kind)
	require.Equal(t, time.Minute, cfg.Sandbox["vxstream"].Timeout.Std())
	require.Equal(t, 5*time.Second, cfg.Poller.Interval.Std())
	require.Equal(t, 10, cfg.Poller.MaxAttempts)
}

func TestParseInvalid(t *testing.T) {
	for name, data := range map[string]string{
		"unknown_key":      "[storage]\nunknown = 1\n",
		"bad_duration":     "[scanner]\nengine_timeout = \"soon\"\n",
		"unnamed_engine":   "[[engines]]\nkind = \"eset\"\n",
		"no_kind":          "[[engines]]\nname = \"eset\"\n",
		"duplicate_engine": "[[engines]]\nname = \"a\"\nkind = \"eset\"\n[[engines]]\nname = \"a\"\nkind = \"drweb\"\n",
		"sandbox_no_url":   "[sandbox.fireeye]\nusername = \"u\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestDefaultConfigAndSave(t *testing.T) {
	cfg := DefaultConfig()
	require.Empty(t, cfg.Engines)
	require.Equal(t, "infected", cfg.Archive.Password)
	require.Equal(t, "sqlite3", cfg.Storage.RDBMSDriver)

	path := filepath.Join(t.TempDir(), "sampleflow.toml")
	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Archive, loaded.Archive)
	require.Equal(t, cfg.Poller, loaded.Poller)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}
