/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	preset := filepath.Join(t.TempDir(), "preset.yaml")
	require.NoError(t, os.WriteFile(preset, []byte("- Alice,A1\n- Bob\n- Carol\n"), 0o600))

	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "Defaults",
			cfg:  Config{port: 8080, maxEntries: 500},
		},
		{
			name:    "CertWithoutKey",
			cfg:     Config{port: 8080, tlsCert: "cert.pem"},
			wantErr: true,
		},
		{
			name:    "PortTooHigh",
			cfg:     Config{port: 70000},
			wantErr: true,
		},
		{
			name:    "NegativeMaxEntries",
			cfg:     Config{port: 8080, maxEntries: -1},
			wantErr: true,
		},
		{
			name:    "NegativeTimeout",
			cfg:     Config{port: 8080, sessionTimeout: -time.Second},
			wantErr: true,
		},
		{
			name: "Preset",
			cfg:  Config{port: 8080, preset: preset},
		},
		{
			name:    "PresetOverCap",
			cfg:     Config{port: 8080, preset: preset, maxEntries: 2},
			wantErr: true,
		},
		{
			name:    "MissingPreset",
			cfg:     Config{port: 8080, preset: filepath.Join(t.TempDir(), "nope.yaml")},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			err := cfg.validate()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if cfg.preset != "" {
				assert.Len(t, cfg.presetEntries, 3)
			}
		})
	}
}

func TestNewCmdReadsEnvironment(t *testing.T) {
	t.Setenv("NAMEWHEEL_PORT", "9191")
	t.Setenv("NAMEWHEEL_MAX_ENTRIES", "12")
	t.Setenv("NAMEWHEEL_SESSION_TIMEOUT", "5m")

	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, 9191, cfg.port)
	assert.Equal(t, 12, cfg.maxEntries)
	assert.Equal(t, 5*time.Minute, cfg.sessionTimeout)
	assert.Equal(t, "0.0.0.0", cfg.bind)
}

func TestConfigScheme(t *testing.T) {
	assert.Equal(t, "http", (&Config{}).scheme())
	assert.Equal(t, "https", (&Config{tlsCert: "c", tlsKey: "k"}).scheme())
}
