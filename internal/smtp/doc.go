// Package smtp delivers composed messages over SMTP submission.
//
// The Sender upgrades the connection with STARTTLS (or dials with implicit
// TLS on port 465) and authenticates with XOAUTH2 when the credential holds
// an OAuth2 token, or PLAIN when it holds a password such as a Gmail app
// password. Gmail accepts XOAUTH2 only for tokens with the
// https://mail.google.com/ scope.
package smtp
