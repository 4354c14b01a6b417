// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/h0x/internal/config"
)

const configLongDesc string = `Print the effective configuration as TOML.

The output reflects the config file, H0X_* environment variables and flags,
in that order of precedence (flags win). Use --path to print the file
location instead, or --get for a single key.

Examples:
  h0x config
  h0x config --path
  h0x config --get endpoint.url`

type configCommander struct {
	opts     *globalOptions
	showPath bool
	key      string
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmder := &configCommander{opts: opts}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long:  configLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().BoolVar(&cmder.showPath, "path", false, "Print the config file path")
	cmd.Flags().StringVar(&cmder.key, "get", "", "Print one key, e.g. endpoint.url")

	cmd.AddCommand(newConfigInitCmd(opts))

	return cmd
}

const configInitLongDesc string = `Write a config file with the defaults.

The file goes to --config, or ~/.h0x/config.toml. --endpoint and
--transport are written into it. An existing file is kept unless --force.

Examples:
  h0x config init
  h0x --endpoint http://127.0.0.1:8787/invoke config init --force`

func newConfigInitCmd(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long:  configInitLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, opts, force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}

func runConfigInit(cmd *cobra.Command, opts *globalOptions, force bool) error {
	path := opts.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.Default()
	if err := opts.apply(cfg); err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), RenderInfo("wrote "+path))
	return nil
}

func (c *configCommander) run(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	if c.showPath {
		path, err := config.ResolvePath(c.opts.configPath)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, path)
		return nil
	}

	cfg, err := c.opts.loadConfig()
	if err != nil {
		return err
	}

	if c.key != "" {
		v, err := cfg.Get(c.key)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, v)
		return nil
	}

	data, err := cfg.MarshalTOML()
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
