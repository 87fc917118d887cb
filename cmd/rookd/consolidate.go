package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "run a single consolidation pass and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := buildEngine(ctx, cfgPath)
		if err != nil {
			return err
		}
		defer e.close(context.Background())

		result, err := e.consolidator.Consolidate(time.Now().UTC())
		if err != nil {
			return fmt.Errorf("consolidate: %w", err)
		}

		fmt.Printf("consolidated=%d unconsolidated=%d advanced=%d skipped=%d duration_ms=%d\n",
			result.Consolidated, result.Unconsolidated, result.Advanced, result.Skipped, result.DurationMS())
		if len(result.Errors) > 0 {
			fmt.Println("errors:")
			for _, e := range result.Errors {
				fmt.Println(" -", e)
			}
		}
		return nil
	},
}
