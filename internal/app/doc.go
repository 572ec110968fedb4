// Package app wires application dependencies for the CLI.
//
// Config is loaded from an optional YAML file, an optional dotenv file and
// the environment. NewWire validates it and builds the logger and crypto
// provider; App runs the responder and initiator flows on top of that.
package app
