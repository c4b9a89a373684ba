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


package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rivaas.dev/logship"
)

func (c *command) initValidateCmd() {
	c.root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate a sink configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.config.GetString(optionNameConfig) == "" {
				return errNoConfig
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			rt, err := logship.ParseRuntime(cfg.Runtime)
			if err != nil {
				return err
			}

			level := cfg.Level
			if level == "" {
				level = logship.LevelInfo.String()
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tLEVEL\tSTATE")
			for _, sc := range cfg.Sinks {
				sinkLevel := sc.Level
				if sinkLevel == "" {
					sinkLevel = level + " (inherited)"
				}
				state := "active"
				if !rt.Supports(sc.Type) {
					state = "inert on " + string(rt)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sc.Name, sc.Type, sinkLevel, state)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: %d sinks, level %s, runtime %s\n", len(cfg.Sinks), level, rt)
			return nil
		},
	})
}
