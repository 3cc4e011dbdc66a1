// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quiet-mesh/quietcore/core"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/queries"
	"github.com/quiet-mesh/quietcore/transport/loopback"
)

var queryCmd = &cobra.Command{
	Use:   "query <name> <params.json>",
	Short: "run one read-only query against a store and print its rows",
	Args:  cobra.ExactArgs(2),
	RunE:  runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	name := args[0]
	raw, err := readParamsArg(args[1])
	if err != nil {
		return err
	}

	var params queries.Params
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

	rows, err := cc.Query(ctx, name, params)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
