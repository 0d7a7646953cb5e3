// Copyright 2025 The GridML Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/maruel/subcommands"
	"gopkg.in/yaml.v2"

	"go.chromium.org/luci/common/errors"

	"github.com/gridml/gridml-go/gridml"
)

const userAgent = "gridml-cli"

// configFile is the optional ~/.gridml.yaml.
type configFile struct {
	Endpoint     string `yaml:"endpoint"`
	LogsEndpoint string `yaml:"logs_endpoint"`
	LogGroup     string `yaml:"log_group"`
}

// commandBase carries the flags shared by every subcommand.
type commandBase struct {
	subcommands.CommandRunBase

	service     string
	logsService string
	configPath  string
}

func (c *commandBase) registerBaseFlags() {
	c.Flags.StringVar(&c.service, "service", "", "Control plane URL. Overrides the config file.")
	c.Flags.StringVar(&c.logsService, "logs-service", "", "Log backend URL. Defaults to the control plane URL.")
	c.Flags.StringVar(&c.configPath, "config", "", "Path to a YAML config file. Defaults to ~/.gridml.yaml.")
}

// loadConfig reads the YAML config. A missing default config file is fine;
// a missing explicitly given one is not.
func (c *commandBase) loadConfig() (*configFile, error) {
	path := c.configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return &configFile{}, nil
		}
		path = filepath.Join(home, ".gridml.yaml")
	}
	blob, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err) && c.configPath == "":
		return &configFile{}, nil
	case err != nil:
		return nil, errors.Fmt("reading config: %w", err)
	}
	cfg := &configFile{}
	if err := yaml.Unmarshal(blob, cfg); err != nil {
		return nil, errors.Fmt("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// handle resolves the endpoints from flags and config and opens a Handle.
func (c *commandBase) handle() (*gridml.Handle, *configFile, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	service := c.service
	if service == "" {
		service = cfg.Endpoint
	}
	if service == "" {
		return nil, nil, errors.New("a control plane URL is required: pass -service or set `endpoint` in ~/.gridml.yaml")
	}
	logsService := c.logsService
	if logsService == "" {
		logsService = cfg.LogsEndpoint
	}
	h, err := gridml.New(gridml.Options{
		Service:     service,
		LogsService: logsService,
		UserAgent:   userAgent,
	})
	if err != nil {
		return nil, nil, err
	}
	return h, cfg, nil
}

func (c *commandBase) done(ctx context.Context, err error) int {
	if err != nil {
		errors.Log(ctx, err)
		return 1
	}
	return 0
}
