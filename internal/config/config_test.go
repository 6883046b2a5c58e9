package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Input", cfg.Input, ""},
		{"Output", cfg.Output, ""},
		{"WeaverConfig", cfg.WeaverConfig, "weaver.xml"},
		{"DebugSymbols", cfg.DebugSymbols, true},
		{"LogLevel", cfg.LogLevel, "info"},
		{"JSONLogs", cfg.JSONLogs, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if !reflect.DeepEqual(cfg.ReferenceDirs, []string{"."}) {
		t.Errorf("DefaultConfig().ReferenceDirs = %v, want [.]", cfg.ReferenceDirs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *Config
		wantErr     bool
		errContains string
	}{
		{
			name:    "valid config",
			cfg:     &Config{Input: "app.wvc", Output: "out/app.wvc", LogLevel: "debug"},
			wantErr: false,
		},
		{
			name:    "empty log level means info",
			cfg:     &Config{},
			wantErr: false,
		},
		{
			name:        "invalid log level",
			cfg:         &Config{LogLevel: "loud"},
			wantErr:     true,
			errContains: "log_level",
		},
		{
			name:        "empty reference dir",
			cfg:         &Config{ReferenceDirs: []string{"lib", " "}},
			wantErr:     true,
			errContains: "reference_dirs",
		},
		{
			name:        "output without input",
			cfg:         &Config{Output: "out.wvc"},
			wantErr:     true,
			errContains: "output requires input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.errContains)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		envVars     map[string]string
		checkCfg    func(*testing.T, *Config)
		wantErr     bool
		errContains string
	}{
		{
			name: "load valid config from file",
			configYAML: `
input: bin/app.wvc
output: woven/app.wvc
weaver_config: build/weaver.xml
reference_dirs: [lib, vendor/lib]
debug_symbols: false
log_level: debug
json_logs: true
`,
			checkCfg: func(t *testing.T, cfg *Config) {
				if cfg.Input != "bin/app.wvc" {
					t.Errorf("Input = %v, want bin/app.wvc", cfg.Input)
				}
				if cfg.OutputPath() != "woven/app.wvc" {
					t.Errorf("OutputPath() = %v, want woven/app.wvc", cfg.OutputPath())
				}
				if cfg.WeaverConfig != "build/weaver.xml" {
					t.Errorf("WeaverConfig = %v, want build/weaver.xml", cfg.WeaverConfig)
				}
				if !reflect.DeepEqual(cfg.ReferenceDirs, []string{"lib", "vendor/lib"}) {
					t.Errorf("ReferenceDirs = %v, want [lib vendor/lib]", cfg.ReferenceDirs)
				}
				if cfg.DebugSymbols {
					t.Errorf("DebugSymbols = true, want false")
				}
				if cfg.LogLevel != "debug" || !cfg.JSONLogs {
					t.Errorf("LogLevel = %v, JSONLogs = %v", cfg.LogLevel, cfg.JSONLogs)
				}
			},
		},
		{
			name:       "partial config keeps defaults",
			configYAML: "input: app.wvc\n",
			checkCfg: func(t *testing.T, cfg *Config) {
				if cfg.OutputPath() != "app.wvc" {
					t.Errorf("OutputPath() = %v, want app.wvc", cfg.OutputPath())
				}
				if cfg.WeaverConfig != "weaver.xml" {
					t.Errorf("WeaverConfig = %v, want weaver.xml", cfg.WeaverConfig)
				}
			},
		},
		{
			name:       "env overrides file",
			configYAML: "input: app.wvc\nlog_level: info\n",
			envVars: map[string]string{
				"WEAVER_LOG_LEVEL":      "warn",
				"WEAVER_REFERENCE_DIRS": "a" + string(os.PathListSeparator) + "b",
			},
			checkCfg: func(t *testing.T, cfg *Config) {
				if cfg.LogLevel != "warn" {
					t.Errorf("LogLevel = %v, want warn", cfg.LogLevel)
				}
				if !reflect.DeepEqual(cfg.ReferenceDirs, []string{"a", "b"}) {
					t.Errorf("ReferenceDirs = %v, want [a b]", cfg.ReferenceDirs)
				}
			},
		},
		{
			name:        "invalid yaml",
			configYAML:  "input: [unterminated",
			wantErr:     true,
			errContains: "failed to parse config file",
		},
		{
			name:        "invalid level",
			configYAML:  "log_level: chatty\n",
			wantErr:     true,
			errContains: "log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			cfg, err := LoadFromFile(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadFromFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("LoadFromFile() error = %v, want it to contain %q", err, tt.errContains)
				}
				return
			}
			tt.checkCfg(t, cfg)
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("LoadFromFile() error = %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("WEAVER_INPUT", "in.wvc")
	t.Setenv("WEAVER_OUTPUT", "out.wvc")
	t.Setenv("WEAVER_CONFIG", "custom.xml")
	t.Setenv("WEAVER_DEBUG_SYMBOLS", "0")
	t.Setenv("WEAVER_JSON_LOGS", "yes")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Input != "in.wvc" || cfg.Output != "out.wvc" {
		t.Errorf("Input = %v, Output = %v", cfg.Input, cfg.Output)
	}
	if cfg.WeaverConfig != "custom.xml" {
		t.Errorf("WeaverConfig = %v, want custom.xml", cfg.WeaverConfig)
	}
	if cfg.DebugSymbols {
		t.Errorf("DebugSymbols = true, want false")
	}
	if !cfg.JSONLogs {
		t.Errorf("JSONLogs = false, want true")
	}
}

func TestConfigSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", ".weaver", "config.yaml")

	cfg := &Config{
		Input:         "app.wvc",
		Output:        "woven.wvc",
		WeaverConfig:  "weaver.xml",
		ReferenceDirs: []string{"lib"},
		LogLevel:      "warn",
	}

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatalf("Config file was not created at %s", configPath)
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, cfg) {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", loaded, cfg)
	}
}

func TestLevel(t *testing.T) {
	cfg := &Config{LogLevel: "error"}
	if got := cfg.Level().String(); got != "ERROR" {
		t.Errorf("Level() = %v, want ERROR", got)
	}
	cfg.LogLevel = "bogus"
	if got := cfg.Level().String(); got != "INFO" {
		t.Errorf("Level() = %v, want INFO", got)
	}
}
