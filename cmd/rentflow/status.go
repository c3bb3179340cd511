// cmd/rentflow/status.go
package main

import (
	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "status <record-id>",
		Short: "Show the lifecycle and on-chain status of a recorded transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openHistory()
			if err != nil {
				return err
			}
			defer backend.close()

			if wait {
				tracked, err := a.waitForConfirmation(cmd, backend, args[0])
				if err != nil {
					return err
				}
				if a.out.IsJSONMode() {
					return a.out.JSON(tracked)
				}
				return nil
			}

			tracked, err := a.newTracker(backend).Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.out.IsJSONMode() {
				return a.out.JSON(tracked)
			}
			printTracked(a.out, tracked)
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the transaction reaches a final on-chain status")

	return cmd
}
