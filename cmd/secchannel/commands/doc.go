// Package commands defines the secchannel CLI.
//
// Commands
//
//   - respond      Create the channel and send sealed messages to the initiator
//   - initiate     Attach to the channel and print the messages received
//   - config show  Print the effective configuration
//   - config env   List the environment variables read at startup
//   - suites       List supported algorithms
//
// # Implementation
//
// The root command loads configuration before any subcommand runs; flags
// override file and environment values. respond and initiate validate it
// and build the app. The context passed to Execute is cancelled on
// interrupt and flows down to every blocking channel operation.
package commands
