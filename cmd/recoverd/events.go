package main

import (
	"context"
	"fmt"

	"github.com/cuemby/recoverd/pkg/client"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recently published coordinator events",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := adminAddress(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		c := client.New(addr)
		defer c.Close()

		events, err := c.Events(context.Background(), limit)
		if err != nil {
			return err
		}
		for _, e := range events {
			fmt.Printf("%s  %-24s %s\n", e.Timestamp.Format("2006-01-02T15:04:05Z07:00"), e.Type, e.Message)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().Int("limit", 50, "Maximum number of recent events to show")
}
