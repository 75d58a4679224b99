package main

import (
	"github.com/spf13/cobra"

	"github.com/kuitang/notehub-client/internal/notes"
)

func newListCmd(root *rootOptions) *cobra.Command {
	var (
		page    int
		perPage int
		search  string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := root.service()
			if err != nil {
				return err
			}
			params := notes.ListParams{Page: page, PerPage: perPage, Search: search}.Normalized()
			res, err := svc.List(cmd.Context(), params)
			if err != nil {
				return describe("list notes", err)
			}
			if root.jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			return writeNoteTable(cmd.OutOrStdout(), res, params.Page)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&perPage, "per-page", notes.DefaultPerPage, "Notes per page")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter by text in title or content")
	return cmd
}
