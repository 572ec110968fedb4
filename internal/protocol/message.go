package protocol

import "fmt"

// Channel parameters both binaries agree on.
const (
	DefaultChannelName = "secure-channel-queue"
	MaxMessageNumber   = 1024
	MaxMessageSize     = 4096
)

// MessageType tags a logical message.
type MessageType uint32

const (
	TypePayload      MessageType = 0xBAADF00D
	TypePublicKey    MessageType = 0xCAFEBABE
	TypeSymmetricKey MessageType = 0xDEADBEEF
)

// Valid reports whether t is in the catalogue.
func (t MessageType) Valid() bool {
	switch t {
	case TypePayload, TypePublicKey, TypeSymmetricKey:
		return true
	}
	return false
}

func (t MessageType) String() string {
	switch t {
	case TypePayload:
		return "payload"
	case TypePublicKey:
		return "public-key"
	case TypeSymmetricKey:
		return "symmetric-key"
	default:
		return fmt.Sprintf("type(0x%08x)", uint32(t))
	}
}
