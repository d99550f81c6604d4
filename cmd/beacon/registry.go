package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cuemby/beacon/pkg/address"
	"github.com/cuemby/beacon/pkg/events"
	"github.com/cuemby/beacon/pkg/types"
	"github.com/spf13/cobra"
)

// addPageFlags registers the pagination flags shared by list commands
func addPageFlags(cmd *cobra.Command) {
	cmd.Flags().String("start-after", "", "Cursor: key of the last item of the previous page")
	cmd.Flags().Uint32("limit", 0, "Page size (1-30, default 10)")
	cmd.Flags().String("order", "", "Sort order: asc or desc (default desc)")
}

func pageFromFlags(cmd *cobra.Command) (types.PageRequest, error) {
	var page types.PageRequest

	if cmd.Flags().Changed("start-after") {
		startAfter, _ := cmd.Flags().GetString("start-after")
		page.StartAfter = &startAfter
	}
	if cmd.Flags().Changed("limit") {
		limit, _ := cmd.Flags().GetUint32("limit")
		page.Limit = &limit
	}

	orderFlag, _ := cmd.Flags().GetString("order")
	order, err := types.ParseOrder(orderFlag)
	if err != nil {
		return page, err
	}
	page.Order = order

	return page, nil
}

// parseFields parses --field values of the form key[:name[:description]]
func parseFields(specs []string) ([]types.AlertField, error) {
	fields := make([]types.AlertField, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		if parts[0] == "" {
			return nil, fmt.Errorf("invalid field %q: key is empty", spec)
		}

		field := types.AlertField{Key: parts[0], Name: parts[0]}
		if len(parts) > 1 && parts[1] != "" {
			field.Name = parts[1]
		}
		if len(parts) > 2 {
			field.Description = parts[2]
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// parseValues parses --value flags of the form key=value
func parseValues(specs []string) ([]types.SubscriptionFieldValue, error) {
	values := make([]types.SubscriptionFieldValue, 0, len(specs))
	for _, spec := range specs {
		key, value, ok := strings.Cut(spec, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid value %q: expected key=value", spec)
		}
		values = append(values, types.SubscriptionFieldValue{Key: key, Value: value})
	}
	return values, nil
}

// Alert commands
var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage alert definitions",
}

var alertCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create or overwrite an alert (owner only)",
	Long: `Create an alert definition. The alert key is
blockchain.protocol.method; creating an alert with an existing key
replaces it.

Examples:
  beacon alert create --blockchain ethereum --protocol uniswap --method swap \
    --name "Large swap" --field min_amount:Minimum\ amount --field token`,
	RunE: func(cmd *cobra.Command, args []string) error {
		blockchain, _ := cmd.Flags().GetString("blockchain")
		protocol, _ := cmd.Flags().GetString("protocol")
		method, _ := cmd.Flags().GetString("method")
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		fieldSpecs, _ := cmd.Flags().GetStringArray("field")

		fields, err := parseFields(fieldSpecs)
		if err != nil {
			return err
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		alert, err := c.CreateAlert(&types.CreateAlertRequest{
			Blockchain:  blockchain,
			Protocol:    protocol,
			Method:      method,
			Name:        name,
			Description: description,
			Fields:      fields,
		})
		if err != nil {
			return fmt.Errorf("failed to create alert: %v", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Alert created: %s\n", alert.Key)
		return nil
	},
}

var alertGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Show an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		alert, err := c.GetAlert(args[0])
		if err != nil {
			return fmt.Errorf("failed to get alert: %v", err)
		}
		return p.alert(alert)
	},
}

var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := pageFromFlags(cmd)
		if err != nil {
			return err
		}
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		alerts, err := c.GetAlerts(page)
		if err != nil {
			return fmt.Errorf("failed to list alerts: %v", err)
		}
		return p.alerts(alerts)
	},
}

func init() {
	alertCmd.AddCommand(alertCreateCmd)
	alertCmd.AddCommand(alertGetCmd)
	alertCmd.AddCommand(alertListCmd)

	alertCreateCmd.Flags().String("blockchain", "", "Blockchain the alert watches")
	alertCreateCmd.Flags().String("protocol", "", "Protocol the alert watches")
	alertCreateCmd.Flags().String("method", "", "Protocol method the alert watches")
	alertCreateCmd.Flags().String("name", "", "Display name")
	alertCreateCmd.Flags().String("description", "", "Description")
	alertCreateCmd.Flags().StringArray("field", nil, "Required subscriber field as key[:name[:description]] (repeatable)")
	_ = alertCreateCmd.MarkFlagRequired("blockchain")
	_ = alertCreateCmd.MarkFlagRequired("protocol")
	_ = alertCreateCmd.MarkFlagRequired("method")

	addPageFlags(alertListCmd)
}

// Subscription commands
var subscriptionCmd = &cobra.Command{
	Use:     "subscription",
	Aliases: []string{"sub"},
	Short:   "Manage subscriptions of the sender",
}

var subscriptionSubscribeCmd = &cobra.Command{
	Use:   "subscribe ALERT_KEY",
	Short: "Subscribe the sender to an alert",
	Long: `Subscribe the --sender address to an alert. A value is required for
every field the alert declares; subscribing again replaces the values.

Examples:
  beacon subscription subscribe ethereum.uniswap.swap --value min_amount=1000 --value token=USDC`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		valueSpecs, _ := cmd.Flags().GetStringArray("value")
		values, err := parseValues(valueSpecs)
		if err != nil {
			return err
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		sub, err := c.SubscribeAlert(&types.SubscribeAlertRequest{
			AlertKey:    args[0],
			FieldValues: values,
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe: %v", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s subscribed to %s\n", sub.Subscriber, sub.AlertKey)
		return nil
	},
}

var subscriptionUnsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe ALERT_KEY",
	Short: "Remove the sender's subscription to an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.UnsubscribeAlert(args[0]); err != nil {
			return fmt.Errorf("failed to unsubscribe: %v", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Unsubscribed from %s\n", args[0])
		return nil
	},
}

var subscriptionListCmd = &cobra.Command{
	Use:   "list [ADDRESS]",
	Short: "List the subscriptions of an address (default: the sender)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("sender")
		if len(args) == 1 {
			addr = args[0]
		}
		if addr == "" {
			return fmt.Errorf("an ADDRESS argument or --sender is required")
		}

		page, err := pageFromFlags(cmd)
		if err != nil {
			return err
		}
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		subs, err := c.GetSubscriptionsForAddress(addr, page)
		if err != nil {
			return fmt.Errorf("failed to list subscriptions: %v", err)
		}
		return p.subscriptions(subs)
	},
}

func init() {
	subscriptionCmd.AddCommand(subscriptionSubscribeCmd)
	subscriptionCmd.AddCommand(subscriptionUnsubscribeCmd)
	subscriptionCmd.AddCommand(subscriptionListCmd)

	subscriptionSubscribeCmd.Flags().StringArray("value", nil, "Field value as key=value (repeatable)")
	addPageFlags(subscriptionListCmd)
}

// Event commands
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow registry events",
	Long: `Print registry events as they happen until interrupted.

Examples:
  beacon events
  beacon events --type alert.created --type subscription.created`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eventTypes, _ := cmd.Flags().GetStringArray("type")
		p, err := newPrinter(cmd)
		if err != nil {
			return err
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return c.StreamEvents(ctx, eventTypes, func(ev *events.Event) error {
			if ok, err := p.structured(ev); ok {
				return err
			}
			_, err := fmt.Fprintf(p.out, "%s  %-22s %s\n", ev.Timestamp.Format("2006-01-02T15:04:05Z07:00"), ev.Type, ev.Message)
			return err
		})
	},
}

func init() {
	eventsCmd.Flags().StringArray("type", nil, "Only show events of this type (repeatable)")
}

// Address commands
var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Generate and convert addresses",
}

var addressNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a random address",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := address.Random()
		if err != nil {
			return err
		}
		printAddress(cmd, addr)
		return nil
	},
}

var addressCanonicalCmd = &cobra.Command{
	Use:   "canonical ADDRESS",
	Short: "Validate an address and print its base58 and hex forms",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := address.Parse(args[0])
		if err != nil {
			return err
		}
		printAddress(cmd, addr)
		return nil
	},
}

func printAddress(cmd *cobra.Command, addr address.Canonical) {
	fmt.Fprintf(cmd.OutOrStdout(), "Address: %s\n", addr)
	fmt.Fprintf(cmd.OutOrStdout(), "Hex:     %s\n", addr.Hex())
}

func init() {
	addressCmd.AddCommand(addressNewCmd)
	addressCmd.AddCommand(addressCanonicalCmd)
}
