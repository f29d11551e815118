package main

import (
	"context"
	"fmt"

	"github.com/cuemby/recoverd/pkg/client"
	"github.com/spf13/cobra"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Force a fresh election on the target coordinator",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := adminAddress(cmd)
		if err != nil {
			return err
		}
		c := client.New(addr)
		defer c.Close()

		if err := c.ForceElection(context.Background()); err != nil {
			return err
		}
		fmt.Println("forced a fresh election")
		return nil
	},
}
