package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kuitang/notehub-client/internal/notes"
)

func newCreateCmd(root *rootOptions) *cobra.Command {
	var title, content, tag string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a note",
		Long: `Create a note. The title must be 3 to 50 characters, content at most 500
characters, and the tag one of Todo, Work, Personal, Meeting, Shopping.
Invalid input is reported without contacting NoteHub.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := notes.CreateParams{Title: title, Content: content, Tag: notes.Tag(tag)}
			if res := notes.Validate(params); !res.OK() {
				for _, fe := range res.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", fe.Field, fe.Message)
				}
				return fmt.Errorf("note is invalid")
			}

			svc, err := root.service()
			if err != nil {
				return err
			}
			n, err := svc.Create(cmd.Context(), notes.Normalize(params))
			if err != nil {
				return describe("create note", err)
			}
			if root.jsonOut {
				return writeJSON(cmd.OutOrStdout(), n)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created note %s: %s\n", n.ID, n.Title)
			return err
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Note title")
	cmd.Flags().StringVarP(&content, "content", "c", "", "Note content")
	cmd.Flags().StringVar(&tag, "tag", string(notes.DefaultTag), "Note tag")
	return cmd
}
