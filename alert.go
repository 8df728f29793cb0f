package main

// This file defines pluggable alert handlers for when the PIR sensor
// reports motion.

import (
	"fmt"
	"net/smtp"
	"strings"
)

// AlertHandler represents a mechanism that can send an alert when motion is
// detected.  If an error is returned, the caller should log it but continue
// operation.
type AlertHandler interface {
	Name() string
	Send(ev MotionEvent, logger *EventLogger) error
}

// LogAlert writes a line to the event logger.  This is the default alert
// handler if no other alerts are configured.
type LogAlert struct{}

// Name returns the type name of the alert handler.
func (LogAlert) Name() string { return "log" }

// Send writes an alert to the event log.
func (LogAlert) Send(ev MotionEvent, logger *EventLogger) error {
	logger.Log("alert: motion on GPIO %d", ev.Pin)
	return nil
}

// EmailAlert sends an email via an SMTP server when motion is detected.  The
// subject defaults to "servopi motion" if empty.
type EmailAlert struct {
	SMTPServer string
	SMTPPort   int
	Username   string
	Password   string
	From       string
	To         string
	Subject    string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// Name returns the type name of the alert handler.
func (EmailAlert) Name() string { return "email" }

// Send dispatches a minimal plaintext message.  Errors from the SMTP client
// are returned directly so the caller can log them.
func (e EmailAlert) Send(ev MotionEvent, logger *EventLogger) error {
	subject := e.Subject
	if subject == "" {
		subject = "servopi motion"
	}
	body := fmt.Sprintf("Motion detected on GPIO %d at %s.", ev.Pin, ev.At.Format("2006-01-02 15:04:05"))
	// RFC 5322 requires CRLF line endings.
	msg := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", e.To, subject, body)
	addr := fmt.Sprintf("%s:%d", e.SMTPServer, e.SMTPPort)
	auth := smtp.PlainAuth("", e.Username, e.Password, e.SMTPServer)
	send := e.send
	if send == nil {
		send = smtp.SendMail
	}
	return send(addr, auth, e.From, []string{e.To}, []byte(msg))
}

// initAlertHandlers builds handlers from configuration.  With nothing
// usable configured a LogAlert is returned.
func initAlertHandlers(alerts []AlertConfig) []AlertHandler {
	var handlers []AlertHandler
	for _, ac := range alerts {
		switch strings.ToLower(ac.Type) {
		case "log":
			handlers = append(handlers, LogAlert{})
		case "email":
			handlers = append(handlers, EmailAlert{
				SMTPServer: ac.SMTPServer,
				SMTPPort:   ac.SMTPPort,
				Username:   ac.Username,
				Password:   ac.Password,
				From:       ac.From,
				To:         ac.To,
				Subject:    ac.Subject,
			})
		}
	}
	if len(handlers) == 0 {
		handlers = append(handlers, LogAlert{})
	}
	return handlers
}
