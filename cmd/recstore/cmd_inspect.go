package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/kjk/recstore/repair"
)

func init() {
	cmdMain.AddCommand(cmdInspect)
	cmdMain.AddCommand(cmdTruncate)

	cmdInspect.Flags().IntVarP(&flagRecordSize, "record-size", "s", pointSize, "Size of a record in bytes")
	cmdInspect.Flags().BoolVar(&flagInspect.JSON, "json", false, "Print reports as json")
	cmdTruncate.Flags().IntVarP(&flagRecordSize, "record-size", "s", pointSize, "Size of a record in bytes")
	cmdTruncate.Flags().StringVar(&flagTruncate.ArchiveTo, "archive", "", "Before truncating, archive the file to this path (.zst, .br or .gz to compress)")
}

var flagRecordSize int

var flagInspect struct {
	JSON bool
}

var flagTruncate struct {
	ArchiveTo string
}

var cmdInspect = &cobra.Command{
	Use:   "inspect <file>...",
	Short: "Report record count and corruption of record files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nCorrupt, err := inspect(cmd.OutOrStdout(), args, flagRecordSize, flagInspect.JSON)
		if err != nil {
			return err
		}
		if nCorrupt > 0 {
			return fmt.Errorf("%d corrupt file(s)", nCorrupt)
		}
		return nil
	},
}

var cmdTruncate = &cobra.Command{
	Use:   "truncate <file>",
	Short: "Remove partial record from the end of a record file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return truncate(cmd.OutOrStdout(), args[0], flagRecordSize, flagTruncate.ArchiveTo)
	},
}

func inspect(w io.Writer, paths []string, recordSize int, asJSON bool) (int, error) {
	var reports []*repair.Report
	nCorrupt := 0
	for _, path := range paths {
		r, err := repair.Inspect(path, recordSize)
		if err != nil {
			return 0, err
		}
		if r.IsCorrupt() {
			nCorrupt++
		}
		reports = append(reports, r)
	}
	if asJSON {
		d, err := json.Marshal(reports)
		if err != nil {
			return 0, err
		}
		_, err = w.Write(pretty.Pretty(d))
		return nCorrupt, err
	}
	for _, r := range reports {
		fmt.Fprintf(w, "%s: %d bytes, %d records of %d bytes", r.Path, r.Size, r.RecordCount, r.RecordSize)
		if r.IsCorrupt() {
			fmt.Fprintf(w, ", CORRUPT: %d bytes remaining", r.Remainder)
		}
		fmt.Fprintln(w)
	}
	return nCorrupt, nil
}

func truncate(w io.Writer, path string, recordSize int, archivePath string) error {
	r, err := repair.Inspect(path, recordSize)
	if err != nil {
		return err
	}
	if !r.IsCorrupt() {
		fmt.Fprintf(w, "%s: not corrupt, nothing to do\n", path)
		return nil
	}
	if archivePath != "" {
		if err = repair.Archive(archivePath, path); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: archived as %s\n", path, archivePath)
	}
	removed, err := repair.TruncateTail(path, recordSize)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: removed %d bytes, %d records left\n", path, removed, r.RecordCount)
	return nil
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}
