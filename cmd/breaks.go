package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var breaksOut string

var breaksCmd = &cobra.Command{
	Use:   "breaks",
	Short: "Generate break events without assigning them",
	RunE:  runBreaks,
}

func init() {
	breaksCmd.Flags().StringVarP(&breaksOut, "out", "o", "-", "CSV output file, - for stdout")
	rootCmd.AddCommand(breaksCmd)
}

func runBreaks(cmd *cobra.Command, args []string) (err error) {
	ctx, stop := signalContext()
	defer stop()

	svc, err := newService()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); err == nil {
			err = cerr
		}
	}()

	var w io.Writer = cmd.OutOrStdout()
	if breaksOut != "-" {
		f, err := os.Create(breaksOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	batch, err := svc.Breaks(ctx, w)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.ErrOrStderr(), "%d trips, %d short, %d long, %d skipped\n",
		batch.Trips, batch.Short, batch.Long, batch.Skipped)
	return err
}
