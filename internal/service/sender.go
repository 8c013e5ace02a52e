package service

import (
	"context"
	"fmt"
	"unicode/utf8"
)

type SendClient interface {
	Send(ctx context.Context, phoneNumber, message string) (remoteMessageID string, err error)
}

// WhatsAppMaxChars is the provider limit for a single message body.
const WhatsAppMaxChars = 1600

type Sender struct {
	client     SendClient
	contentMax int
}

func NewSender(client SendClient, contentMax int) *Sender {
	return &Sender{
		client:     client,
		contentMax: contentMax,
	}
}

// Send validates the body and hands it to the transport.
func (s *Sender) Send(ctx context.Context, phoneNumber, message string) (string, error) {
	if n := utf8.RuneCountInString(message); s.contentMax > 0 && n > s.contentMax {
		return "", fmt.Errorf("%w: %d chars exceeds %d", ErrContentTooLong, n, s.contentMax)
	}
	return s.client.Send(ctx, phoneNumber, message)
}
