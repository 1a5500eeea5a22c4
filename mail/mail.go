// Package mail delivers user-facing notifications such as one-time codes.
//
// The engine only knows the Mailer interface. Transport lives in the
// adapters: KafkaMailer publishes to a topic consumed by a separate delivery
// service and LogMailer writes to the process log for development.
package mail

import (
	"context"
	"errors"
)

// Message kinds.
const (
	KindLoginCode = "totp_login_code"
)

var ErrSendFailed = errors.New("mail send failed")

// Message is a single outbound notification.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Kind    string `json:"kind"`
}

// Mailer hands messages to a transport.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
