package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage webhook subscriptions (admin)",
}

var webhookEvents []string

var webhookAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Subscribe a URL to ledger events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		wh, err := c.CreateWebhook(ctx, args[0], webhookEvents)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(map[string]any{"subscription": wh, "secret": wh.Secret})
		}
		pterm.Success.Printfln("Webhook %s created", wh.ID)
		pterm.Warning.Println("Store this signing secret now, it will not be shown again:")
		pterm.Println(wh.Secret)
		return nil
	},
}

var webhookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List webhook subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		hooks, err := c.Webhooks(ctx)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(hooks)
		}
		if len(hooks) == 0 {
			pterm.Info.Println("No webhooks registered")
			return nil
		}
		rows := [][]string{{"ID", "URL", "Events", "Created"}}
		for _, h := range hooks {
			rows = append(rows, []string{h.ID, h.URL, strings.Join(h.Events, ", "), h.CreatedAt.Local().Format(time.DateTime)})
		}
		return renderTable(rows)
	},
}

var webhookRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a webhook subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := c.DeleteWebhook(ctx, args[0]); err != nil {
			return err
		}
		pterm.Success.Printfln("Webhook %s removed", args[0])
		return nil
	},
}

var webhookShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Describe one webhook subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		wh, err := c.Webhook(ctx, args[0])
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(wh)
		}
		return renderTable([][]string{
			{"Webhook", "Value"},
			{"ID", wh.ID},
			{"URL", wh.URL},
			{"Events", strings.Join(wh.Events, ", ")},
			{"Active", strconv.FormatBool(wh.Active)},
			{"Created", wh.CreatedAt.Local().Format(time.DateTime)},
		})
	},
}

var webhookDeliveryLimit int

var webhookDeliveriesCmd = &cobra.Command{
	Use:   "deliveries",
	Short: "Show recent delivery attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		deliveries, err := c.WebhookDeliveries(ctx, webhookDeliveryLimit)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(deliveries)
		}
		if len(deliveries) == 0 {
			pterm.Info.Println("No deliveries recorded")
			return nil
		}
		rows := [][]string{{"Webhook", "Event", "Attempt", "Status", "Result", "When"}}
		for _, d := range deliveries {
			result := "ok"
			if !d.Success {
				result = "failed"
				if d.ErrorMessage != "" {
					result += ": " + d.ErrorMessage
				}
			}
			rows = append(rows, []string{
				d.SubscriptionID, d.EventType, strconv.Itoa(d.Attempt), strconv.Itoa(d.StatusCode),
				result, d.DeliveredAt.Local().Format(time.DateTime),
			})
		}
		return renderTable(rows)
	},
}

func init() {
	webhookDeliveriesCmd.Flags().IntVar(&webhookDeliveryLimit, "limit", 50, "deliveries to show")
	webhookAddCmd.Flags().StringSliceVar(&webhookEvents, "events",
		[]string{"block.appended", "ledger.integrity_lost", "ledger.integrity_restored"}, "events to deliver")
	webhookCmd.AddCommand(webhookAddCmd)
	webhookCmd.AddCommand(webhookListCmd)
	webhookCmd.AddCommand(webhookRemoveCmd)
	webhookCmd.AddCommand(webhookShowCmd)
	webhookCmd.AddCommand(webhookDeliveriesCmd)
	rootCmd.AddCommand(webhookCmd)
}
