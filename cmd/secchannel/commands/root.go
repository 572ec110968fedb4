package commands

import (
	"context"

	"github.com/spf13/cobra"

	"secchannel/internal/app"
)

// options holds the root flags and the configuration they produce.
type options struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	channelDir string
	name       string

	cfg *app.Config
}

// Execute runs the CLI. ctx is cancelled on interrupt.
func Execute(ctx context.Context) error {
	return NewRoot().ExecuteContext(ctx)
}

// NewRoot builds the command tree.
func NewRoot() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "secchannel",
		Short:         "Authenticated, encrypted message channel between two local processes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.Load(o.configPath, o.envFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("log-level") {
				c.Log.Level = o.logLevel
			}
			if flags.Changed("log-format") {
				c.Log.Format = o.logFormat
			}
			if flags.Changed("dir") {
				c.Channel.Dir = o.channelDir
			}
			if flags.Changed("name") {
				c.Channel.Name = o.name
			}
			o.cfg = c
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&o.envFile, "env-file", "", "dotenv file loaded before reading the environment")
	pf.StringVar(&o.logLevel, "log-level", "info", "log level (panic..trace)")
	pf.StringVar(&o.logFormat, "log-format", "text", "log format (text or json)")
	pf.StringVar(&o.channelDir, "dir", "", "socket directory")
	pf.StringVarP(&o.name, "name", "n", "", "channel name")

	root.AddCommand(respondCmd(o), initiateCmd(o), configCmd(o), suitesCmd(o))
	return root
}

// newApp validates the loaded config and wires the app, logging to stderr.
func (o *options) newApp(cmd *cobra.Command) (*app.App, error) {
	w, err := app.NewWire(o.cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return app.New(w), nil
}
