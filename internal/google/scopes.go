package google

import (
	gmail "google.golang.org/api/gmail/v1"
)

// Transport names understood by ScopesForTransport.
const (
	TransportGmailAPI = "gmail-api"
	TransportSMTP     = "smtp"
)

// ScopesForTransport returns the OAuth scopes a transport needs. The Gmail
// API accepts the narrow send scope; SMTP XOAUTH2 only accepts full mail
// access.
func ScopesForTransport(transport string) []string {
	if transport == TransportSMTP {
		return []string{gmail.MailGoogleComScope}
	}
	return []string{gmail.GmailSendScope}
}
