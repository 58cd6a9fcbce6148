package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/darren-owldoor/owldoor-geocoder/internal/batch"
	"github.com/darren-owldoor/owldoor-geocoder/internal/csvio"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint progress for an output file",
	RunE: func(_ *cobra.Command, _ []string) error {
		cp, err := batch.NewCheckpointStore(statusOutput).Load()
		if err != nil {
			return err
		}
		rows, err := csvio.CountRows(statusOutput, ',')
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "output:       %s\n", statusOutput)
		fmt.Fprintf(os.Stdout, "rows written: %d\n", rows)
		if cp == nil {
			fmt.Fprintln(os.Stdout, "checkpoint:   none")
			return nil
		}
		fmt.Fprintf(os.Stdout, "checkpoint:   row %d committed (chunk size %d)\n", cp.LastCompletedIndex, cp.ChunkSize)
		fmt.Fprintf(os.Stdout, "provider:     %s\n", cp.Provider)
		fmt.Fprintf(os.Stdout, "run id:       %s\n", cp.RunID)
		fmt.Fprintf(os.Stdout, "updated at:   %s\n", cp.UpdatedAt.Local())
		if rows != cp.LastCompletedIndex+1 {
			fmt.Fprintf(os.Stdout, "note:         output has %d rows but checkpoint covers %d; a resumed run will reconcile\n", rows, cp.LastCompletedIndex+1)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusOutput, "output", "", "output CSV path (required)")
	_ = statusCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(statusCmd)
}
