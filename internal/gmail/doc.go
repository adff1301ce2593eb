// Package gmail delivers composed messages through the Gmail API.
//
// The Sender uploads the RFC 5322 rendering of a mail.Message with
// users.messages.send on behalf of the authenticated user ("me"). It needs an
// OAuth2 token credential carrying the gmail.send (or broader) scope.
//
// Example usage:
//
//	sender := gmail.NewSender()
//	id, err := sender.Send(ctx, msg, cred)
//	if err != nil {
//	    log.Fatal(err)
//	}
package gmail
