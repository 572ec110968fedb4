// Package handshake establishes a sealed session between an initiator and a
// responder over a channel.
//
// # Flows
//
// Initiator:
//  1. Send its process id as a 4-byte Payload message (PIDSent).
//  2. Generate an exchange key pair and send the public blob (KeySent).
//  3. Receive the SymmetricKey blob and unwrap it with the exchange key.
//  4. Receive the PublicKey blob and keep it as the verification key
//     (KeyExchanged, then Established).
//
// Responder:
//  1. Receive the process id message (Listening, then PIDReceived).
//  2. Generate a signature key pair and a session key.
//  3. Receive and import the initiator's exchange public key.
//  4. Send the session key wrapped for that key (KeysIssued).
//  5. Send its signature public key (KeyExchanged, then Established).
//
// Any failure moves the session to Aborted: key material is destroyed and
// the channel is closed. There is no retry.
//
// # Sessions
//
// An established responder session seals with the session key and its
// signature key; an initiator session unseals with the session key and the
// verification key. Each sealed message travels as two Payload messages,
// iv || ciphertext followed by the signature.
package handshake
