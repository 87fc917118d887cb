package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rook/internal/fsrs"
)

var archiveCandidatesLimit int

var archiveCandidatesCmd = &cobra.Command{
	Use:   "archive-candidates",
	Short: "list non-key memories whose retrievability has fallen below the archival threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := buildEngine(ctx, cfgPath)
		if err != nil {
			return err
		}
		defer e.close(context.Background())

		now := time.Now().UTC()
		archCfg := fsrs.ArchivalConfig{
			ArchiveThreshold: e.cfg.Cognitive.ArchiveThreshold,
			MinAgeDays:       e.cfg.Cognitive.ArchiveMinAgeDays,
			ArchiveLimit:     archiveCandidatesLimit,
		}

		rows, err := e.cognitiveStore.GetArchivalCandidates(archCfg.MinAgeDays, archCfg.ArchiveLimit, now)
		if err != nil {
			return fmt.Errorf("archive-candidates: %w", err)
		}

		scheduler := fsrs.NewScheduler()
		printed := 0
		for _, row := range rows {
			r := scheduler.Retrievability(row.State, now)
			if !archCfg.IsCandidate(r, row.CreatedAt, now) {
				continue
			}
			fmt.Printf("%s\tretrievability=%.4f\tcreated_at=%s\n", row.MemoryID, r, row.CreatedAt.Format(time.RFC3339))
			printed++
		}
		fmt.Printf("%d candidate(s)\n", printed)
		return nil
	},
}

func init() {
	archiveCandidatesCmd.Flags().IntVar(&archiveCandidatesLimit, "limit", 100, "maximum rows to scan")
}
