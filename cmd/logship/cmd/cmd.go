// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package cmd implements the logship command line tool.
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rivaas.dev/logship"
)

const (
	optionNameConfig      = "config"
	optionNameLevel       = "level"
	optionNameRuntime     = "runtime"
	optionNameService     = "service"
	optionNameEnvironment = "environment"
	optionNameLineLevel   = "line-level"
)

var errNoConfig = errors.New("no configuration file, set --config or LOGSHIP_CONFIG")

func init() {
	cobra.EnableCommandSorting = false
}

type command struct {
	root    *cobra.Command
	config  *viper.Viper
	version string
}

type option func(*command)

func newCommand(opts ...option) *command {
	c := &command{
		version: version,
		root: &cobra.Command{
			Use:           "logship",
			Short:         "Ship log lines to configured sinks",
			SilenceErrors: true,
			SilenceUsage:  true,
		},
	}
	c.root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return c.initConfig(cmd)
	}

	for _, o := range opts {
		o(c)
	}

	c.initGlobalFlags()
	c.initPipeCmd()
	c.initValidateCmd()
	c.initVersionCmd()

	return c
}

func (c *command) Execute() error {
	return c.root.Execute()
}

// Execute parses command line arguments and runs the selected command.
func Execute() error {
	return newCommand().Execute()
}

func (c *command) initGlobalFlags() {
	flags := c.root.PersistentFlags()
	flags.String(optionNameConfig, "", "sink configuration file (.yaml, .toml or .json)")
	flags.String(optionNameLevel, "", "minimum level, overrides the configuration file")
	flags.String(optionNameRuntime, "", "runtime: server or browser (default detect)")
	flags.String(optionNameService, "", "service name")
	flags.String(optionNameEnvironment, "", "deployment environment")
}

// initConfig binds the flags of the running command and LOGSHIP_*
// environment variables.
func (c *command) initConfig(cmd *cobra.Command) error {
	config := viper.New()
	config.SetEnvPrefix("logship")
	config.AutomaticEnv()
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := config.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	c.config = config
	return nil
}

// loadConfig reads the configuration file, if one is set. Flag and
// environment values take precedence over the file.
func (c *command) loadConfig() (*logship.Config, error) {
	cfg := &logship.Config{}
	if path := c.config.GetString(optionNameConfig); path != "" {
		loaded, err := logship.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	for key, dst := range map[string]*string{
		optionNameLevel:       &cfg.Level,
		optionNameRuntime:     &cfg.Runtime,
		optionNameService:     &cfg.Service,
		optionNameEnvironment: &cfg.Environment,
	} {
		if v := c.config.GetString(key); v != "" {
			*dst = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *command) newLogger(cmd *cobra.Command) (*logship.Logger, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logship.New(
		logship.WithStreams(cmd.OutOrStdout(), cmd.ErrOrStderr()),
		logship.WithConfig(cfg),
	)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}
