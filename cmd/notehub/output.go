package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/kuitang/notehub-client/internal/errs"
	"github.com/kuitang/notehub-client/internal/notes"
)

const titleColumnWidth = 40

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeNoteTable(w io.Writer, res notes.PageResult, page int) error {
	if len(res.Notes) == 0 {
		_, err := fmt.Fprintln(w, "No notes found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTAG\tTITLE\tLINES\tUPDATED")
	for _, n := range res.Notes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			n.ID, n.Tag, clip(n.Title, titleColumnWidth), notes.CountLines(n.Content), n.UpdatedAt.Local().Format(time.DateTime))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if res.TotalPages > 1 {
		_, err := fmt.Fprintf(w, "\nPage %d of %d\n", page, res.TotalPages)
		return err
	}
	return nil
}

func writeNote(w io.Writer, n notes.Note) error {
	_, err := fmt.Fprintf(w, "%s [%s]\nid: %s\ncreated: %s\n\n%s\n",
		n.Title, n.Tag, n.ID, n.CreatedAt.Local().Format(time.DateTime), n.Content)
	return err
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// describe keeps the coded message and drops transport detail.
func describe(op string, err error) error {
	return fmt.Errorf("%s: %s (%s)", op, errs.MessageOf(err), errs.CodeOf(err))
}
