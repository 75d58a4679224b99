// Command notehub lists, reads, creates and deletes NoteHub notes from the
// terminal.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
