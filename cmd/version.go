package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/longkey1/llmnote/internal/version"
	"github.com/spf13/cobra"
)

// versionCmd prints build metadata
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show build information",
	Long: `Show the llmnote version, the commit and build time it was built from,
and the Go toolchain and platform.

'llmnote --version' prints the short form.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		short, _ := cmd.Flags().GetBool("short")
		asJSON, _ := cmd.Flags().GetBool("json")
		return printVersion(cmd.OutOrStdout(), short, asJSON)
	},
}

func printVersion(w io.Writer, short, asJSON bool) error {
	switch {
	case asJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(version.Get())
	case short:
		_, err := fmt.Fprintln(w, version.Short())
		return err
	default:
		_, err := fmt.Fprintln(w, version.Info())
		return err
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version.Short()
	rootCmd.SetVersionTemplate("llmnote {{.Version}}\n")

	versionCmd.Flags().BoolP("short", "s", false, "Print only the version number")
	versionCmd.Flags().Bool("json", false, "Print build information as JSON")
}
