// Package domain defines the plain types and the error taxonomy shared by
// the channel, protocol, crypto and handshake packages.
package domain
