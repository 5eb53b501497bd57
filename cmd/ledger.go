package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contact-sync/internal/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect or amend the processed contact ledger",
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print processed contact ids as a JSON array",
	RunE: func(cmd *cobra.Command, args []string) error {
		res := newResources(cfg)
		defer res.Close()

		l, err := res.Ledger(cmd.Context())
		if err != nil {
			return err
		}
		return showLedger(cmd.Context(), os.Stdout, l)
	},
}

var ledgerAddCmd = &cobra.Command{
	Use:   "add <contact-id>...",
	Short: "Mark contacts as processed so batches skip them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res := newResources(cfg)
		defer res.Close()

		l, err := res.Ledger(cmd.Context())
		if err != nil {
			return err
		}
		added, err := addToLedger(cmd.Context(), l, args)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "added %d contact(s)\n", added)
		return nil
	},
}

func showLedger(ctx context.Context, w io.Writer, l ledger.Ledger) error {
	set, err := l.Load(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(set.Sorted()), "write ledger")
}

// addToLedger merges ids into the ledger and returns how many were new.
func addToLedger(ctx context.Context, l ledger.Ledger, ids []string) (int, error) {
	if locker, ok := l.(ledger.Locker); ok {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			return 0, err
		}
		defer unlock()
	}

	set, err := l.Load(ctx)
	if err != nil {
		return 0, err
	}
	before := set.Len()
	for _, id := range ids {
		set.Add(id)
	}
	if err := l.Save(ctx, set); err != nil {
		return 0, err
	}
	return set.Len() - before, nil
}

func init() {
	ledgerCmd.AddCommand(ledgerShowCmd, ledgerAddCmd)
	rootCmd.AddCommand(ledgerCmd)
}
