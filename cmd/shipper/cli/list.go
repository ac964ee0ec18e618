package cli

import (
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/shipper"
	"github.com/meigma/shipper/internal/archive"
)

var (
	listLong   bool
	listHuman  bool
	listFormat string
)

var listCmd = &cobra.Command{
	Use:     "ls <archive>",
	Aliases: []string{"list"},
	Short:   "List files in a built archive",
	Long: `Ls displays the files in an archive produced by publish.

The format is inferred from the file name unless --format is given.
eStargz archives are listed from their table of contents.

Examples:
  shipper ls dist/waifu2x-v1.2.3-linux-cuda.tar.zst
  shipper ls -l dist/waifu2x-v1.2.3-linux-cuda.tar.zst
  shipper ls -lH dist/waifu2x-v1.2.3.stargz.tar.gz`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listLong, "long", "l", false, "Use long listing format")
	listCmd.Flags().BoolVarP(&listHuman, "human-readable", "H", false, "Print sizes in human-readable format")
	listCmd.Flags().StringVar(&listFormat, "format", "", "Archive format (default: inferred from the file name)")
	//nolint:errcheck // flag is defined above
	listCmd.RegisterFlagCompletionFunc("format", completeFormats)
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	path := args[0]

	format, err := listArchiveFormat(path)
	if err != nil {
		return err
	}

	entries, err := archive.List(path, format)
	if err != nil {
		return err
	}

	if listLong {
		printLongListing(cmd.OutOrStdout(), entries, listHuman)
	} else {
		printShortListing(cmd.OutOrStdout(), entries)
	}
	return nil
}

func listArchiveFormat(path string) (shipper.Format, error) {
	if listFormat != "" {
		return shipper.ParseFormat(listFormat)
	}
	return shipper.FormatFromName(path)
}

// printShortListing prints just the entry names.
func printShortListing(w io.Writer, entries []archive.Entry) {
	for _, entry := range entries {
		fmt.Fprintln(w, entry.Name)
	}
}

// printLongListing prints mode, size, and name in ls -l style format.
func printLongListing(w io.Writer, entries []archive.Entry, human bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, entry := range entries {
		name := entry.Name
		if entry.LinkName != "" {
			name += " -> " + entry.LinkName
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", formatMode(entry.Mode), formatSize(entry, human), name)
	}
	tw.Flush()
}

// formatMode converts fs.FileMode to symbolic format (e.g., "-rw-r--r--").
func formatMode(mode fs.FileMode) string {
	buf := make([]byte, 10)

	switch {
	case mode.IsDir():
		buf[0] = 'd'
	case mode&fs.ModeSymlink != 0:
		buf[0] = 'l'
	default:
		buf[0] = '-'
	}

	const rwx = "rwx"
	for i := range 3 {
		for j := range 3 {
			//nolint:gosec // G115: i and j are in range 0-2, no overflow possible
			if mode&(1<<uint(8-i*3-j)) != 0 {
				buf[1+i*3+j] = rwx[j]
			} else {
				buf[1+i*3+j] = '-'
			}
		}
	}

	return string(buf)
}

// formatSize formats an entry size for display.
func formatSize(entry archive.Entry, human bool) string {
	if entry.IsDir() {
		return "-"
	}
	if human {
		//nolint:gosec // G115: size is from archive metadata we wrote
		return humanize.IBytes(uint64(entry.Size))
	}
	return strconv.FormatInt(entry.Size, 10)
}
