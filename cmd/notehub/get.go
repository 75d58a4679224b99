package main

import (
	"github.com/spf13/cobra"
)

func newGetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one note in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := root.service()
			if err != nil {
				return err
			}
			n, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return describe("get note", err)
			}
			if root.jsonOut {
				return writeJSON(cmd.OutOrStdout(), n)
			}
			return writeNote(cmd.OutOrStdout(), n)
		},
	}
}
