package smtp

import (
	"errors"
	netsmtp "net/smtp"
)

type xoauth2Auth struct {
	username, token string
}

// XOAuth2 returns an Auth that implements the XOAUTH2 mechanism. Like
// PlainAuth, it refuses to send the token over an unencrypted connection
// unless the server is on localhost.
func XOAuth2(username, token string) netsmtp.Auth {
	return &xoauth2Auth{username: username, token: token}
}

func (a *xoauth2Auth) Start(server *netsmtp.ServerInfo) (string, []byte, error) {
	if !server.TLS && !isLocalhost(server.Name) {
		return "", nil, errors.New("unencrypted connection")
	}
	resp := "user=" + a.username + "\x01auth=Bearer " + a.token + "\x01\x01"
	return "XOAUTH2", []byte(resp), nil
}

// Next answers the server's error challenge with an empty response, which
// makes the server send the final failure status.
func (a *xoauth2Auth) Next(_ []byte, more bool) ([]byte, error) {
	if more {
		return []byte{}, nil
	}
	return nil, nil
}

func isLocalhost(name string) bool {
	return name == "localhost" || name == "127.0.0.1" || name == "::1"
}
