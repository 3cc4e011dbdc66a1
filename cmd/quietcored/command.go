// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quiet-mesh/quietcore/commands"
	"github.com/quiet-mesh/quietcore/core"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/transport/loopback"
)

var commandCmd = &cobra.Command{
	Use:   "command <name> <params.json>",
	Short: "build and run one command's envelope(s) against a fresh store, print stored_ids",
	Args:  cobra.ExactArgs(2),
	RunE:  runCommand,
}

func init() {
	rootCmd.AddCommand(commandCmd)
}

func runCommand(cmd *cobra.Command, args []string) error {
	name := args[0]
	raw, err := readParamsArg(args[1])
	if err != nil {
		return err
	}

	var params commands.Params
	if err := json.Unmarshal(raw, &params); err != nil {
		return fmt.Errorf("parse params: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := core.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}

	net := loopback.NewNetwork()
	tr := net.NewTransport("127.0.0.1:0")
	cc := core.New(st, tr, clock.Real{}, cfg)

	result, err := cc.Command(ctx, name, params)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// readParamsArg treats arg as a literal JSON object if it starts with
// '{', otherwise as a path to a JSON file.
func readParamsArg(arg string) ([]byte, error) {
	if len(arg) > 0 && arg[0] == '{' {
		return []byte(arg), nil
	}
	return os.ReadFile(arg)
}
