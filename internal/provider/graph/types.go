// Package graph implements a Provider that sends mail via the Microsoft Graph API.
package graph

import (
	"github.com/shineum/graph-sendmail/internal/email"
)

// sendMailRequest is the top-level request body for the Graph API sendMail endpoint.
type sendMailRequest struct {
	Message         sendMailMessage `json:"message"`
	SaveToSentItems bool            `json:"saveToSentItems"`
}

// sendMailMessage represents the message portion of a sendMail request.
type sendMailMessage struct {
	Subject      string      `json:"subject"`
	Body         messageBody `json:"body"`
	ToRecipients []recipient `json:"toRecipients"`
	Sender       *recipient  `json:"sender,omitempty"`
	From         *recipient  `json:"from,omitempty"`
}

// messageBody represents the body of an email message.
type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// recipient represents an email recipient.
type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

// emailAddress represents an email address in a Graph API request.
type emailAddress struct {
	Address string `json:"address"`
}

// graphUser is the subset of the Graph user resource the relay needs.
type graphUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// graphErrorResponse represents an error response from the Graph API.
type graphErrorResponse struct {
	Error graphError `json:"error"`
}

// graphError represents the error detail in a Graph API error response.
type graphError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// buildSendMailRequest converts an outbound message into a Graph API
// sendMail request body that is saved to the sender's Sent Items.
func buildSendMailRequest(msg *email.Outbound) *sendMailRequest {
	toRecipients := make([]recipient, 0, len(msg.To))
	for _, addr := range msg.To {
		toRecipients = append(toRecipients, recipient{
			EmailAddress: emailAddress{Address: addr},
		})
	}

	return &sendMailRequest{
		Message: sendMailMessage{
			Subject: msg.Subject,
			Body: messageBody{
				ContentType: msg.Body.ContentType,
				Content:     msg.Body.Content,
			},
			ToRecipients: toRecipients,
			Sender:       optionalRecipient(msg.Sender),
			From:         optionalRecipient(msg.From),
		},
		SaveToSentItems: true,
	}
}

func optionalRecipient(addr string) *recipient {
	if addr == "" {
		return nil
	}
	return &recipient{EmailAddress: emailAddress{Address: addr}}
}
