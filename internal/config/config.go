// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the command configuration from defaults, a
// YAML file, an optional .env file and QR_* environment variables, in
// increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	qr "github.com/unixdj/qrkit"
	"github.com/unixdj/qrkit/coding"
)

// EnvPrefix prefixes environment variable names.
const EnvPrefix = "QR_"

// Config holds the command configuration.
type Config struct {
	qr.Options `yaml:",inline"`

	Format    string `yaml:"format"`     // output format, empty for automatic
	StoreRoot string `yaml:"store_root"` // root of saved files
	MediaBase string `yaml:"media_base"` // URL prefix of saved files
	Secret    string `yaml:"secret"`     // download token secret
	LogLevel  string `yaml:"log_level"`
	LogJSON   bool   `yaml:"log_json"`
}

func defaults() *Config {
	return &Config{
		Options:   *qr.DefaultOptions(),
		StoreRoot: ".",
		MediaBase: "/media",
		LogLevel:  "info",
	}
}

/*
Load returns the configuration.

The YAML file at path is read over the defaults; a missing file is not
an error, unknown keys are.  If envFile is not empty and exists, its
variables are loaded into the environment without overriding those
already set.  Finally QR_<KEY> variables override file values, for the
upper-cased YAML keys, e.g. QR_LEVEL, QR_MIN_VERSION, QR_STORE_ROOT.
*/
func Load(path, envFile string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: %w", err)
		default:
			dec := yaml.NewDecoder(bytes.NewReader(b))
			dec.KnownFields(true)
			if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("config: %s: %w", path, err)
			}
		}
	}
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("config: %s: %w", envFile, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv sets fields from QR_* variables.
func (cfg *Config) applyEnv() error {
	text := map[string]interface{ UnmarshalText([]byte) error }{
		"LEVEL":      &cfg.Level,
		"MODE":       &cfg.Mode,
		"CHARSET":    &cfg.Charset,
	}
	colors := map[string]**qr.Color{
		"FOREGROUND": &cfg.Foreground,
		"BACKGROUND": &cfg.Background,
	}
	ints := map[string]*int{
		"MIN_RUN": &cfg.MinRun,
		"SIZE":    &cfg.Size,
		"MARGIN":  &cfg.Margin,
	}
	bools := map[string]*bool{
		"NO_KANJI":    &cfg.NoKanji,
		"ECI":         &cfg.ECI,
		"BOOST":       &cfg.Boost,
		"ALLOW_EMPTY": &cfg.AllowEmpty,
		"LOG_JSON":    &cfg.LogJSON,
	}
	strs := map[string]*string{
		"FORMAT":     &cfg.Format,
		"STORE_ROOT": &cfg.StoreRoot,
		"MEDIA_BASE": &cfg.MediaBase,
		"SECRET":     &cfg.Secret,
		"LOG_LEVEL":  &cfg.LogLevel,
	}

	for k, p := range text {
		if v, ok := os.LookupEnv(EnvPrefix + k); ok {
			if err := p.UnmarshalText([]byte(v)); err != nil {
				return envError(k, err)
			}
		}
	}
	for k, p := range colors {
		if v, ok := os.LookupEnv(EnvPrefix + k); ok {
			c := new(qr.Color)
			if err := c.UnmarshalText([]byte(v)); err != nil {
				return envError(k, err)
			}
			*p = c
		}
	}
	for k, p := range ints {
		if v, ok := os.LookupEnv(EnvPrefix + k); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return envError(k, err)
			}
			*p = n
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "MIN_VERSION"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("MIN_VERSION", err)
		}
		cfg.MinVersion = coding.Version(n)
	}
	for k, p := range bools {
		if v, ok := os.LookupEnv(EnvPrefix + k); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return envError(k, err)
			}
			*p = b
		}
	}
	for k, p := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + k); ok {
			*p = v
		}
	}
	return nil
}

func envError(k string, err error) error {
	return fmt.Errorf("config: %s%s: %w", EnvPrefix, k, err)
}
