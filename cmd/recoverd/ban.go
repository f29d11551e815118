package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/recoverd/pkg/client"
	"github.com/cuemby/recoverd/pkg/types"
	"github.com/spf13/cobra"
)

var banCmd = &cobra.Command{
	Use:   "ban <pnn> <duration>",
	Short: "Immediately ban a node for the given duration",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := adminAddress(cmd)
		if err != nil {
			return err
		}

		var pnn uint32
		if _, err := fmt.Sscanf(args[0], "%d", &pnn); err != nil {
			return fmt.Errorf("recoverd: invalid pnn %q: %w", args[0], err)
		}
		duration, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("recoverd: invalid duration %q: %w", args[1], err)
		}

		c := client.New(addr)
		defer c.Close()

		if err := c.Ban(context.Background(), types.PNN(pnn), duration); err != nil {
			return err
		}
		fmt.Printf("banned node %d for %s\n", pnn, duration)
		return nil
	},
}
