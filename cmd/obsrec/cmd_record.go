/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/obsrec/internal/recorder"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Control OBS recording directly",
}

var recordStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start OBS recording now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd.Context(), func(ctx context.Context, ctrl *recorder.OBSController) error {
			if err := ctrl.StartRecording(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "recording started")
			return nil
		})
	},
}

var recordStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop OBS recording now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd.Context(), func(ctx context.Context, ctrl *recorder.OBSController) error {
			if err := ctrl.StopRecording(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "recording stopped")
			return nil
		})
	},
}

var recordStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether OBS is recording",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd.Context(), func(ctx context.Context, ctrl *recorder.OBSController) error {
			active, err := ctrl.Recording(ctx)
			if err != nil {
				return err
			}
			if active {
				fmt.Fprintln(cmd.OutOrStdout(), "recording")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "not recording")
			}
			return nil
		})
	},
}

var sceneCmd = &cobra.Command{
	Use:   "scene <name>",
	Short: "Switch the OBS program scene",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd.Context(), func(ctx context.Context, ctrl *recorder.OBSController) error {
			if err := ctrl.SetScene(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scene set to %q\n", args[0])
			return nil
		})
	},
}

func init() {
	recordCmd.AddCommand(recordStartCmd, recordStopCmd, recordStatusCmd)
	rootCmd.AddCommand(recordCmd, sceneCmd)
}

func withController(ctx context.Context, fn func(context.Context, *recorder.OBSController) error) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := newOBSClient()
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(ctx, 2*cfg.OBSTimeout)
	defer cancel()
	return fn(ctx, recorder.NewOBSController(client, logger))
}
