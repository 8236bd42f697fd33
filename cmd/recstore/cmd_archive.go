package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kjk/recstore/repair"
	"github.com/kjk/recstore/s3archive"
)

func init() {
	cmdMain.AddCommand(cmdArchive)
	cmdMain.AddCommand(cmdRestore)
	cmdMain.AddCommand(cmdS3)
	cmdS3.AddCommand(cmdS3Upload)
	cmdS3.AddCommand(cmdS3Download)
	cmdS3.AddCommand(cmdS3List)
	cmdS3.AddCommand(cmdS3Remove)

	cmdS3.PersistentFlags().StringVar(&flagS3.Prefix, "prefix", "recstore", "Remote directory for archives")
	cmdS3Upload.Flags().StringVar(&flagS3.Ext, "ext", repair.ExtZstd, "Compression: .zst, .br, .gz or .bin for none")
}

var flagS3 struct {
	Prefix string
	Ext    string
}

var cmdArchive = &cobra.Command{
	Use:   "archive <file> <archive>",
	Short: "Copy a record file, compressed based on extension of archive (.zst, .br, .gz)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := repair.Archive(args[1], args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "archived %s as %s\n", args[0], args[1])
		return nil
	},
}

var cmdRestore = &cobra.Command{
	Use:   "restore <archive> <file>",
	Short: "Decompress an archive created with archive command",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if fileExists(args[1]) {
			return fmt.Errorf("'%s' already exists", args[1])
		}
		if err := repair.Restore(args[1], args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s as %s\n", args[0], args[1])
		return nil
	},
}

var cmdS3 = &cobra.Command{
	Use:   "s3",
	Short: "Manage record file archives in S3-compatible storage (configured with s3.* settings)",
}

var cmdS3Upload = &cobra.Command{
	Use:   "upload <file>",
	Short: "Compress and upload a record file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := s3archive.New(s3Config())
		if err != nil {
			return err
		}
		remotePath, err := c.UploadArchive(flagS3.Prefix, args[0], flagS3.Ext)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s as %s\n", args[0], c.URLForPath(remotePath))
		return nil
	},
}

var cmdS3Download = &cobra.Command{
	Use:   "download <remote> <archive>",
	Short: "Download an archive, use restore to decompress it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := s3archive.New(s3Config())
		if err != nil {
			return err
		}
		if !c.Exists(args[0]) {
			return fmt.Errorf("'%s' doesn't exist", c.URLForPath(args[0]))
		}
		return c.DownloadFile(args[1], args[0])
	},
}

var cmdS3List = &cobra.Command{
	Use:   "list",
	Short: "List uploaded archives",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := s3archive.New(s3Config())
		if err != nil {
			return err
		}
		paths, err := c.ListArchives(flagS3.Prefix)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

var cmdS3Remove = &cobra.Command{
	Use:   "remove <remote>",
	Short: "Delete an uploaded archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := s3archive.New(s3Config())
		if err != nil {
			return err
		}
		return c.Remove(args[0])
	},
}
