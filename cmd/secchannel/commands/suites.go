package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"secchannel/internal/crypto"
	"secchannel/internal/domain"
)

func suitesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "suites",
		Short: "List supported algorithms and the configured suite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "exchange:  %s\n", strings.Join(crypto.Algorithms(domain.RoleExchange), ", "))
			fmt.Fprintf(w, "signature: %s\n", strings.Join(crypto.Algorithms(domain.RoleSignature), ", "))
			fmt.Fprintf(w, "cipher:    %s\n", strings.Join(crypto.Algorithms(0), ", "))

			suite, err := o.cfg.Suite()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "configured: %s (largest blob %d bytes)\n", suite, suite.MaxBlobSize())
			return nil
		},
	}
}
