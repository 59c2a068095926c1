package model

import "strings"

// InboundEvent is one conversation event delivered by a chat front end:
// a transcript or a follow-up message in a channel/thread.
type InboundEvent struct {
	ChannelID      string `json:"channel_id"`
	Text           string `json:"text"`
	AttachmentText string `json:"attachment_text,omitempty"`
}

// SessionKey derives the session key from the originating channel/thread so
// all messages in the same thread map to the same session.
func (e *InboundEvent) SessionKey() string {
	return e.ChannelID
}

// MessageText joins the message body with any attachment text.
func (e *InboundEvent) MessageText() string {
	if e.AttachmentText == "" {
		return e.Text
	}
	if strings.TrimSpace(e.Text) == "" {
		return e.AttachmentText
	}
	return e.Text + "\n\n" + e.AttachmentText
}
