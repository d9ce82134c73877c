// Copyright 2026 The ESP Authors
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

// Package cmd provides espctl, the command-line harness used to exercise
// an ESP transport and package resolver without a full language-binding
// host attached.
package cmd

import (
	"fmt"
	"os"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pkl-community/esp-core/pkg/logging"
)

// Config holds espctl's environment-derived configuration. Values are
// loaded with Netflix/go-env from the process environment (after an
// optional .env file is merged in with joho/godotenv), the same two-step
// load the teacher's environment package performs.
type Config struct {
	CacheDir string `env:"ESPCTL_CACHE_DIR"`
	Debug    string `env:"DEBUG,default=0"`
}

// LoadConfig merges a .env file (if present in the working directory) into
// the process environment, then unmarshals it into a Config. A missing
// .env file is not an error; every other godotenv failure is.
func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if loadErr := godotenv.Load(); loadErr != nil {
			return nil, fmt.Errorf("espctl: loading .env: %w", loadErr)
		}
	}
	cfg := &Config{}
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("espctl: reading environment: %w", err)
	}
	return cfg, nil
}

// Execute builds and runs the root command, stamping version/commit into
// its --version output.
func Execute(version, commit string) error {
	root := newRootCommand()
	root.Version = fmt.Sprintf("%s (commit: %s)", version, commit)
	return root.Execute()
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "espctl",
		Short: "Drive an ESP evaluator transport from the command line",
		Long: `espctl is a debugging harness for the Evaluator Server Protocol:
it can run an evaluator server over stdio, resolve a single package URI
through the disk-cached resolver, shell out to check the local pkl
binary's version, and pretty-print a recorded frame log.`,
		SilenceUsage: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			if _, err := LoadConfig(); err != nil {
				return err
			}
			logging.CreateLogger()
			return nil
		},
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newResolveCommand())
	root.AddCommand(newRecordCommand())
	root.AddCommand(newPklVersionCommand())
	return root
}
