package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/tarlanskakov/patenr-ali-sh/pkg/client"
)

// ── blocks ───────────────────────────────────────────────────────────────────

var (
	blocksOffset int
	blocksLimit  int
	blocksOldest bool
)

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "List ledger blocks, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		page, err := c.Blocks(ctx, blocksOffset, blocksLimit, !blocksOldest)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(page)
		}
		rows := [][]string{{"#", "Timestamp", "Patent ID", "Nonce", "Hash", "Previous"}}
		for _, b := range page.Blocks {
			rows = append(rows, []string{
				strconv.Itoa(b.Index),
				b.Timestamp.Local().Format(time.DateTime),
				b.PatentID(),
				strconv.FormatUint(b.Nonce, 10),
				short(b.Hash),
				short(b.PreviousHash),
			})
		}
		if err := renderTable(rows); err != nil {
			return err
		}
		pterm.Info.Printfln("Showing %d of %d blocks", len(page.Blocks), page.Total)
		return nil
	},
}

func init() {
	blocksCmd.Flags().IntVar(&blocksOffset, "offset", 0, "blocks to skip")
	blocksCmd.Flags().IntVar(&blocksLimit, "limit", 20, "blocks to show (max 500)")
	blocksCmd.Flags().BoolVar(&blocksOldest, "oldest-first", false, "list from genesis upwards")
}

// ── block ────────────────────────────────────────────────────────────────────

var blockCmd = &cobra.Command{
	Use:   "block <index>",
	Short: "Show a single block and its payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := strconv.Atoi(args[0])
		if err != nil || idx < 0 {
			return fmt.Errorf("invalid block index %q", args[0])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		b, err := c.Block(ctx, idx)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(b)
		}
		pterm.DefaultSection.Printfln("Block #%d", b.Index)
		if err := renderTable([][]string{
			{"Field", "Value"},
			{"Timestamp", b.Timestamp.Format(time.RFC3339Nano)},
			{"Hash", b.Hash},
			{"Previous hash", b.PreviousHash},
			{"Merkle root", b.MerkleRoot},
			{"Nonce", strconv.FormatUint(b.Nonce, 10)},
		}); err != nil {
			return err
		}
		pterm.DefaultSection.Println("Payload")
		return printJSON(b.Payload)
	},
}

// ── stats ────────────────────────────────────────────────────────────────────

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ledger and patent totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		st, err := c.Stats(ctx)
		if err != nil {
			return err
		}
		counts, err := c.Counts(ctx)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(map[string]any{"ledger": st, "patents": counts, "top_types": counts.TopTypes})
		}

		valid := pterm.LightGreen("valid")
		if !st.Valid {
			valid = pterm.LightRed("INVALID")
		}
		if err := renderTable([][]string{
			{"Ledger", "Value"},
			{"Blocks", strconv.Itoa(st.BlockCount)},
			{"Records", strconv.Itoa(st.RecordCount)},
			{"Integrity", valid},
			{"Difficulty", strconv.Itoa(st.Difficulty)},
			{"Total nonce", strconv.FormatUint(st.TotalNonce, 10)},
			{"Avg block interval", fmt.Sprintf("%.1fs", st.AvgBlockIntervalSeconds)},
			{"Tip", short(st.TipHash)},
		}); err != nil {
			return err
		}

		rows := [][]string{{"Patent type", "On-chain", "Off-chain"}}
		for _, t := range counts.TopTypes {
			tc := counts.ByType[t]
			rows = append(rows, []string{t, strconv.Itoa(tc.OnChain), strconv.Itoa(tc.OffChain)})
		}
		rows = append(rows, []string{"Total", strconv.Itoa(counts.OnChain), strconv.Itoa(counts.OffChain)})
		return renderTable(rows)
	},
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the integrity of the whole chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		res, err := c.Verify(ctx)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(res)
		}
		if res.Valid {
			pterm.Success.Println("Blockchain integrity verified")
			return nil
		}
		if res.Index != nil {
			pterm.Error.Printfln("Chain broken at block #%d: %s", *res.Index, res.Error)
		} else {
			pterm.Error.Println(res.Error)
		}
		return fmt.Errorf("ledger failed verification")
	},
}

// ── snapshot ─────────────────────────────────────────────────────────────────

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Take, inspect and verify ledger snapshots",
}

var snapshotTakeCmd = &cobra.Command{
	Use:   "take",
	Short: "Save a snapshot of the live ledger (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		sum, err := c.TakeSnapshot(ctx)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(sum)
		}
		pterm.Success.Printfln("Snapshot %s saved", sum.ID)
		return printSummary(sum)
	},
}

var snapshotLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Describe the most recent snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		sum, err := c.LatestSnapshot(ctx)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(sum)
		}
		return printSummary(sum)
	},
}

var snapshotVerifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Re-check a stored snapshot against itself and the live ledger (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		res, err := c.VerifySnapshot(ctx, args[0])
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(res)
		}
		if res.Valid {
			pterm.Success.Println("Snapshot is internally valid")
		} else {
			pterm.Error.Printfln("Snapshot is invalid: %s", res.Error)
		}
		if res.MatchesLive {
			pterm.Success.Println("Live ledger extends the snapshot")
		} else {
			pterm.Warning.Printfln("Live ledger diverges: %s", res.LiveError)
		}
		if !res.Valid || !res.MatchesLive {
			return fmt.Errorf("snapshot %s failed verification", res.ID)
		}
		return nil
	},
}

var snapshotListLimit int

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		list, err := c.Snapshots(ctx, snapshotListLimit)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(list)
		}
		if len(list) == 0 {
			pterm.Info.Println("No snapshots stored")
			return nil
		}
		rows := [][]string{{"ID", "Taken", "Blocks", "Difficulty", "Tip"}}
		for _, sum := range list {
			rows = append(rows, []string{
				sum.ID, sum.TakenAt.Local().Format(time.DateTime), strconv.Itoa(sum.BlockCount),
				strconv.Itoa(sum.Difficulty), short(sum.TipHash),
			})
		}
		return renderTable(rows)
	},
}

func init() {
	snapshotListCmd.Flags().IntVar(&snapshotListLimit, "limit", 20, "snapshots to show")
	snapshotCmd.AddCommand(snapshotTakeCmd)
	snapshotCmd.AddCommand(snapshotLatestCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotVerifyCmd)
}

func printSummary(sum *client.SnapshotSummary) error {
	return renderTable([][]string{
		{"Snapshot", "Value"},
		{"ID", sum.ID},
		{"Taken", sum.TakenAt.Local().Format(time.RFC1123)},
		{"Blocks", strconv.Itoa(sum.BlockCount)},
		{"Difficulty", strconv.Itoa(sum.Difficulty)},
		{"Tip", sum.TipHash},
	})
}
