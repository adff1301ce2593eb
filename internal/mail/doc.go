// Package mail composes outgoing messages and defines the two collaborators
// that deliver them: a CredentialProvider that yields an opaque Credential
// and a Sender that delivers a composed Message.
//
// Composition never touches the network. An attachment is read completely
// before a Sender is involved, so a missing file fails the call without any
// delivery attempt.
package mail
