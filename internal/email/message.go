// Package email defines the message data model shared by every relay stage.
package email

import "fmt"

// ContentTypeText is the Graph body content type for plain text.
const ContentTypeText = "text"

// Parsed represents a raw message after MIME parsing.
type Parsed struct {
	Sender    string
	From      []string
	To        []string
	Subject   string
	TextBody  string
	HTMLBody  string
	MessageID string
}

// Content holds the subject and body after normalization.
type Content struct {
	Subject string
	Body    string
}

// Body is the body of an outbound message.
type Body struct {
	ContentType string
	Content     string
}

// Outbound is the API-shaped message handed to a delivery provider.
type Outbound struct {
	Subject string
	Body    Body
	To      []string
	Sender  string
	From    string
}

// ParseError reports that the input is not a usable message.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse message: %s: %v", e.Reason, e.Err)
	}
	return "parse message: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
