// Package storage manages the output directory that lead exports are written to.
//
// Streaming sinks open their files through Manager.Open, which appends to an
// existing export. End-of-run files go through Manager.WriteAtomic, which
// writes to a temporary file and renames it into place so a reader never sees
// a half-written export.
//
// Usage:
//
//	manager, err := storage.NewManager("./leads")
//	if err != nil {
//	    return err
//	}
//
//	err = manager.WriteAtomic("leads.csv", func(w io.Writer) error {
//	    return writeRows(w)
//	})
package storage
