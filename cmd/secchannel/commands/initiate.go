package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"secchannel/internal/store"
)

// initiate: receive sealed messages from the responder.
func initiateCmd(o *options) *cobra.Command {
	var (
		count int
		raw   bool
		out   string
	)
	cmd := &cobra.Command{
		Use:   "initiate",
		Short: "Attach to the channel and print the messages the responder sends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			a, err := o.newApp(cmd)
			if err != nil {
				return err
			}
			if out == "" {
				return a.Initiate(cmd.Context(), count, cmd.OutOrStdout(), !raw)
			}

			f, err := store.CreateAtomic(out, 0o600)
			if err != nil {
				return err
			}
			if err := a.Initiate(cmd.Context(), count, f, !raw); err != nil {
				return multierr.Append(err, f.Abort())
			}
			return f.Commit()
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of messages to receive")
	cmd.Flags().BoolVar(&raw, "raw", false, "do not append a newline after each message")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write messages to this file instead of stdout")
	return cmd
}
