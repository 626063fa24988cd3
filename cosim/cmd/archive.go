package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cosim/archive"
	"github.com/sarchlab/cosim/components"
	"github.com/sarchlab/cosim/workspace"
)

var restoreArchive bool

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Work with workspace archives.",
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive.yaml>",
	Short: "List the components and couplings of an archive.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contents, err := archive.Load(args[0])
		if err != nil {
			return err
		}

		if err := printContents(cmd.OutOrStdout(), contents); err != nil {
			return err
		}

		if !restoreArchive {
			return nil
		}

		ws := workspace.MakeBuilder().WithLogger(newLogger()).Build()
		registry := components.NewRegistry(filepath.Dir(args[0]))

		n, err := archive.Restore(ws, contents, registry)
		if err != nil {
			return fmt.Errorf("restoring %s: %w", args[0], err)
		}

		fmt.Fprintf(cmd.OutOrStdout(),
			"restored %d components and %d couplings\n",
			len(ws.Components()), n)

		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&restoreArchive, "restore", false,
		"also restore the archive into an empty workspace to check it")

	archiveCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(archiveCmd)
}

func printContents(out io.Writer, contents *archive.Contents) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "CLASS\tNAME\tURI")
	for _, c := range contents.Components {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Class, c.Name, c.URI)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "SOURCE\tTARGET")
	for _, c := range contents.Couplings {
		fmt.Fprintf(w, "%s %s/%s\t%s %s/%s\n",
			c.Source.URI, c.Source.Holder, c.Source.Attribute,
			c.Target.URI, c.Target.Holder, c.Target.Attribute)
	}

	return w.Flush()
}
