package main

import (
	"context"
	"fmt"

	"github.com/cuemby/recoverd/pkg/client"
	"github.com/spf13/cobra"
)

func adminAddress(cmd *cobra.Command) (string, error) {
	addr, _ := cmd.Flags().GetString("admin-address")
	if addr == "" {
		return "", fmt.Errorf("recoverd: --admin-address is required")
	}
	return addr, nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the coordinator's current view of the cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := adminAddress(cmd)
		if err != nil {
			return err
		}
		c := client.New(addr)
		defer c.Close()

		status, err := c.Status(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("Local PNN:           %d\n", status.LocalPNN)
		fmt.Printf("Believed master:     %d\n", status.BelievedMaster)
		fmt.Printf("Election in progress: %v\n", status.ElectionInProgress)
		fmt.Printf("Recovery in progress:  %v\n", status.RecoveryInProgress)
		fmt.Printf("Recovery disabled:     %v\n", status.RecoveryDisabled)
		fmt.Println()
		fmt.Printf("%-6s %-22s %-10s %-10s\n", "PNN", "ADDRESS", "FLAGS", "CAPS")
		for _, n := range status.Nodes {
			fmt.Printf("%-6d %-22s %-10d %-10d\n", n.PNN, n.Address, n.Flags, n.Capabilities)
		}
		return nil
	},
}
