package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a note permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := root.service()
			if err != nil {
				return err
			}
			n, err := svc.Delete(cmd.Context(), args[0])
			if err != nil {
				return describe("delete note", err)
			}
			if root.jsonOut {
				return writeJSON(cmd.OutOrStdout(), n)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted note %s: %s\n", n.ID, n.Title)
			return err
		},
	}
}
