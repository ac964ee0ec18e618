package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/shipper"
)

// formatNames are the archive formats offered for completion.
var formatNames = []string{
	string(shipper.FormatTarZstd),
	string(shipper.FormatTarGzip),
	string(shipper.FormatEStargz),
}

// completeFormats completes the --format flag.
func completeFormats(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix(formatNames, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeProgressModes completes the --progress flag.
func completeProgressModes(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return filterPrefix([]string{"auto", "tty", "plain"}, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeConfigSet completes `config set <key> <value>`:
// - First arg: a known config key
// - Second arg: values for keys with a fixed set, nothing otherwise
func completeConfigSet(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		return filterPrefix(settableKeys, toComplete), cobra.ShellCompDirectiveNoFileComp
	case 1:
		switch args[0] {
		case "format":
			return filterPrefix(formatNames, toComplete), cobra.ShellCompDirectiveNoFileComp
		case "progress":
			return filterPrefix([]string{"auto", "tty", "plain"}, toComplete), cobra.ShellCompDirectiveNoFileComp
		case "source", "output":
			return nil, cobra.ShellCompDirectiveFilterDirs
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	default:
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
}

func filterPrefix(candidates []string, prefix string) []string {
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}
