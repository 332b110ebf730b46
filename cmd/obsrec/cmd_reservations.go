/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/obsrec/internal/models"
	"github.com/friendsincode/obsrec/internal/scheduler"
)

var reservationsCmd = &cobra.Command{
	Use:   "reservations",
	Short: "List upcoming reservations and the decision the loop would take now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		list, err := newSource().FetchReservations(ctx, cfg.ChannelID)
		if err != nil {
			return err
		}
		now := time.Now()
		printReservations(cmd.OutOrStdout(), list, scheduler.Decide(now, list, scheduler.Margins(cfg.Margins)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reservationsCmd)
}

func printReservations(out io.Writer, list []models.Reservation, d scheduler.Decision) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tEND\tNAME")
	for _, r := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID,
			r.StartAt.Local().Format("2006-01-02 15:04:05"),
			r.EndAt.Local().Format("2006-01-02 15:04:05"),
			r.Name)
	}
	_ = tw.Flush()

	fmt.Fprintln(out)
	if d.HasNext() {
		fmt.Fprintf(out, "next: %q in %s\n", d.Next.Name, d.Wait.Truncate(time.Second))
	}
	fmt.Fprintf(out, "decision: %s, sleep %s\n", d.Action, d.Sleep.Truncate(time.Second))
}
