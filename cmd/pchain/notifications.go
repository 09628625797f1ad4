package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ── notifications ────────────────────────────────────────────────────────────

var (
	notifLimit int
	notifRead  string
	notifClear bool
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Show the notification feed, mark one read or clear it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if notifRead != "" && notifClear {
			return fmt.Errorf("--read and --clear cannot be combined")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		switch {
		case notifClear:
			if err := c.ClearNotifications(ctx); err != nil {
				return err
			}
			pterm.Success.Println("Notifications cleared")
			return nil
		case notifRead != "":
			if err := c.MarkRead(ctx, notifRead); err != nil {
				return err
			}
			pterm.Success.Printfln("Notification %s marked read", notifRead)
			return nil
		}

		items, unread, err := c.Notifications(ctx, notifLimit)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(map[string]any{"notifications": items, "unread": unread})
		}
		if len(items) == 0 {
			pterm.Info.Println("No notifications")
			return nil
		}
		rows := [][]string{{"ID", "Level", "Message", "When", "Read"}}
		for _, n := range items {
			read := ""
			if n.Read {
				read = "✓"
			}
			rows = append(rows, []string{n.ID, n.Level, n.Message, n.Timestamp.Local().Format(time.DateTime), read})
		}
		if err := renderTable(rows); err != nil {
			return err
		}
		pterm.Info.Printfln("%d unread", unread)
		return nil
	},
}

// ── timeline ─────────────────────────────────────────────────────────────────

var timelineDays int

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Count submissions per day",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		days, err := c.Timeline(ctx, timelineDays)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(days)
		}
		peak := 0
		for _, d := range days {
			peak = max(peak, d.Count)
		}
		rows := [][]string{{"Date", "Submissions", ""}}
		for _, d := range days {
			bar := ""
			if peak > 0 {
				bar = strings.Repeat("█", d.Count*30/peak)
			}
			rows = append(rows, []string{d.Date, strconv.Itoa(d.Count), bar})
		}
		return renderTable(rows)
	},
}

func init() {
	f := notificationsCmd.Flags()
	f.IntVar(&notifLimit, "limit", 20, "notifications to show")
	f.StringVar(&notifRead, "read", "", "mark the notification with this ID read")
	f.BoolVar(&notifClear, "clear", false, "delete every notification")
	timelineCmd.Flags().IntVar(&timelineDays, "days", 7, "days to cover, ending today")

	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(timelineCmd)
}
