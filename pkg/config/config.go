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
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all configuration of the pipeline
type Config struct {
	Log     LogConfig                `toml:"log"`
	Storage StorageConfig            `toml:"storage"`
	Archive ArchiveConfig            `toml:"archive"`
	Static  StaticConfig             `toml:"static"`
	Scanner ScannerConfig            `toml:"scanner"`
	Engines []Engine                 `toml:"engines"`
	Sandbox map[string]SandboxConfig `toml:"sandbox"`
	Poller  PollerConfig             `toml:"poller"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level       string `toml:"level"`
	TracePrefix string `toml:"trace_prefix"`
}

// StorageConfig holds sample and report storage settings
type StorageConfig struct {
	RDBMSDriver    string `toml:"rdbms_driver"`
	RDBMSDSN       string `toml:"rdbms_dsn"`
	BlobStorageURL string `toml:"blob_storage_url"`
	CacheSize      uint64 `toml:"cache_size"`
	Uploader       string `toml:"uploader"`
}

// ArchiveConfig holds archive expansion settings
type ArchiveConfig struct {
	Password     string   `toml:"password"`
	SevenZipPath string   `toml:"seven_zip_path"`
	MaxDepth     int      `toml:"max_depth"`
	MaxMembers   int      `toml:"max_members"`
	MaxTotalSize int64    `toml:"max_total_size"`
	ToolTimeout  Duration `toml:"tool_timeout"`
}

// StaticConfig holds static analysis settings. An empty tool path
// disables the tool.
type StaticConfig struct {
	ExifToolPath string   `toml:"exiftool_path"`
	TrIDPath     string   `toml:"trid_path"`
	HexDumpSize  int      `toml:"hexdump_size"`
	ToolTimeout  Duration `toml:"tool_timeout"`
}

// ScannerConfig holds multi-engine scanner settings
type ScannerConfig struct {
	Concurrency   int      `toml:"concurrency"`
	EngineTimeout Duration `toml:"engine_timeout"`
}

// Engine is a single antivirus engine section. Kind selects the adapter,
// the rest are adapter-specific parameters.
type Engine struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"`

	// CLI adapters
	Path       string `toml:"path"`
	Args       string `toml:"args"`
	Regex      string `toml:"regex"`
	KeyGroup   int    `toml:"key_group"`
	ValueGroup int    `toml:"value_group"`

	// daemon socket adapter
	Socket string `toml:"socket"`

	// line socket adapter
	Address string `toml:"address"`
	Product string `toml:"product"`

	Timeout Duration `toml:"timeout"`
}

// SandboxConfig holds the settings of a sandbox backend
type SandboxConfig struct {
	Kind               string   `toml:"kind"`
	BaseURL            string   `toml:"base_url"`
	APIKey             string   `toml:"api_key"`
	APISecret          string   `toml:"api_secret"`
	Username           string   `toml:"username"`
	Password           string   `toml:"password"`
	DefaultEnvironment string   `toml:"default_environment"`
	Timeout            Duration `toml:"timeout"`
	InsecureSkipVerify bool     `toml:"insecure_skip_verify"`
}

// PollerConfig holds sandbox polling settings
type PollerConfig struct {
	Interval    Duration `toml:"interval"`
	MaxInterval Duration `toml:"max_interval"`
	MaxAttempts int      `toml:"max_attempts"`
	Timeout     Duration `toml:"timeout"`
}

// Load loads configuration from TOML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses TOML configuration. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Save saves configuration to TOML file
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the values which cannot be defaulted.
func (c *Config) Validate() error {
	names := map[string]struct{}{}
	for idx, engine := range c.Engines {
		if engine.Name == "" {
			return fmt.Errorf("engine #%d has no name", idx)
		}
		if engine.Kind == "" {
			return fmt.Errorf("engine '%s' has no kind", engine.Name)
		}
		if _, ok := names[engine.Name]; ok {
			return fmt.Errorf("engine '%s' is defined twice", engine.Name)
		}
		names[engine.Name] = struct{}{}
	}
	for name, sandbox := range c.Sandbox {
		if sandbox.BaseURL == "" {
			return fmt.Errorf("sandbox '%s' has no base_url", name)
		}
	}
	return nil
}

// EngineNames returns the names of the configured engines, in order.
func (c *Config) EngineNames() []string {
	result := make([]string, 0, len(c.Engines))
	for _, engine := range c.Engines {
		result = append(result, engine.Name)
	}
	return result
}

func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "warning"
	}
	if c.Storage.RDBMSDriver == "" {
		c.Storage.RDBMSDriver = "sqlite3"
	}
	if c.Storage.RDBMSDSN == "" && c.Storage.RDBMSDriver == "sqlite3" {
		c.Storage.RDBMSDSN = "sampleflow.sqlite"
	}
	if c.Storage.BlobStorageURL == "" {
		c.Storage.BlobStorageURL = "fs://samples"
	}
	if c.Storage.CacheSize == 0 {
		c.Storage.CacheSize = 256 << 20
	}
	if c.Archive.Password == "" {
		c.Archive.Password = "infected"
	}
	if c.Archive.SevenZipPath == "" {
		c.Archive.SevenZipPath = "7z"
	}
	if c.Archive.MaxDepth == 0 {
		c.Archive.MaxDepth = 3
	}
	if c.Archive.MaxMembers == 0 {
		c.Archive.MaxMembers = 1024
	}
	if c.Archive.MaxTotalSize == 0 {
		c.Archive.MaxTotalSize = 256 << 20
	}
	if c.Archive.ToolTimeout == 0 {
		c.Archive.ToolTimeout = Duration(time.Minute)
	}
	if c.Static.HexDumpSize == 0 {
		c.Static.HexDumpSize = 1024
	}
	if c.Static.ToolTimeout == 0 {
		c.Static.ToolTimeout = Duration(time.Minute)
	}
	if c.Scanner.Concurrency == 0 {
		c.Scanner.Concurrency = 4
	}
	if c.Scanner.EngineTimeout == 0 {
		c.Scanner.EngineTimeout = Duration(5 * time.Minute)
	}
	for idx := range c.Engines {
		if c.Engines[idx].Timeout == 0 {
			c.Engines[idx].Timeout = c.Scanner.EngineTimeout
		}
	}
	for name, sandbox := range c.Sandbox {
		if sandbox.Kind == "" {
			sandbox.Kind = name
		}
		if sandbox.Timeout == 0 {
			sandbox.Timeout = Duration(time.Minute)
		}
		c.Sandbox[name] = sandbox
	}
	if c.Poller.Interval == 0 {
		c.Poller.Interval = Duration(10 * time.Second)
	}
	if c.Poller.MaxInterval == 0 {
		c.Poller.MaxInterval = Duration(2 * time.Minute)
	}
	if c.Poller.MaxAttempts == 0 {
		c.Poller.MaxAttempts = 120
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = Duration(2 * time.Hour)
	}
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}
