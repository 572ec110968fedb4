package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"secchannel/internal/securebuf"
	"secchannel/internal/util/memzero"
)

// respond [message...]: serve sealed messages to one initiator.
func respondCmd(o *options) *cobra.Command {
	var (
		file    string
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "respond [message...]",
		Short: "Create the channel and send each message sealed to the initiator",
		Long: `Create the channel, wait for an initiator, complete the handshake and send
each message sealed. Messages come from the arguments, from --file, or from
stdin when neither is given. The command returns once the initiator
disconnects or exits, or on interrupt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			payloads, err := readPayloads(cmd, args, file)
			if err != nil {
				return err
			}
			defer func() {
				for _, p := range payloads {
					p.Release()
				}
			}()

			a, err := o.newApp(cmd)
			if err != nil {
				return err
			}
			return a.Respond(cmd.Context(), payloads, replace)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "send the contents of this file")
	cmd.Flags().BoolVar(&replace, "replace", false, "remove a stale socket with the same name first")
	return cmd
}

func readPayloads(cmd *cobra.Command, args []string, file string) ([]*securebuf.Buffer, error) {
	if len(args) > 0 && file != "" {
		return nil, fmt.Errorf("give messages as arguments or --file, not both")
	}
	if len(args) > 0 {
		out := make([]*securebuf.Buffer, 0, len(args))
		for _, a := range args {
			out = append(out, securebuf.From([]byte(a)))
		}
		return out, nil
	}

	var (
		b   []byte
		err error
	)
	if file != "" {
		b, err = os.ReadFile(file)
	} else {
		b, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	buf := securebuf.From(b)
	memzero.Zero(b)
	return []*securebuf.Buffer{buf}, nil
}
