/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/friendsincode/obsrec/internal/db"
	"github.com/friendsincode/obsrec/internal/events"
	"github.com/friendsincode/obsrec/internal/journal"
	"github.com/friendsincode/obsrec/internal/models"
)

var (
	historyLimit  int
	historyAction string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent recording outcomes from the journal",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum entries to show")
	historyCmd.Flags().StringVar(&historyAction, "action", "", "only show one action (e.g. recording.stopped)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if cfg.JournalDSN == "" {
		return fmt.Errorf("journal is not configured (set OBSREC_JOURNAL_DSN)")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	database, err := db.Connect(cfg.JournalBackend, cfg.JournalDSN)
	if err != nil {
		return fmt.Errorf("connect journal: %w", err)
	}
	defer func() { _ = db.Close(database) }()
	if err := db.Migrate(database); err != nil {
		return err
	}

	filters := journal.QueryFilters{Limit: historyLimit}
	if historyAction != "" {
		action := models.RecordingAction(historyAction)
		filters.Action = &action
	}

	svc := journal.NewService(database, events.NewBus(), logger)
	rows, total, err := svc.Query(ctx, filters)
	if err != nil {
		return fmt.Errorf("query journal: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tRESERVATION\tNAME\tERROR")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			row.OccurredAt.Local().Format("2006-01-02 15:04:05"),
			row.Action, row.ReservationID, row.ProgramName, row.Error)
	}
	_ = tw.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d entries\n", len(rows), total)
	return nil
}
