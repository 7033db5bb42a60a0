// Package mail sends the transactional emails: welcome, password reset,
// subscription confirmation and subscription reminders.
package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mailjet/mailjet-apiv3-go"
	"go.uber.org/zap"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailjetMailer delivers through the Mailjet v3.1 send API.
type MailjetMailer struct {
	client   *mailjet.Client
	from     string
	fromName string
}

func NewMailjetMailer(apiKey, secretKey, from, fromName string) *MailjetMailer {
	return &MailjetMailer{
		client:   mailjet.NewMailjetClient(apiKey, secretKey),
		from:     from,
		fromName: fromName,
	}
}

func (m *MailjetMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	messages := mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{{
		From: &mailjet.RecipientV31{Email: m.from, Name: m.fromName},
		To: &mailjet.RecipientsV31{
			mailjet.RecipientV31{Email: msg.To, Name: msg.ToName},
		},
		Subject:  msg.Subject,
		TextPart: msg.Text,
		HTMLPart: msg.HTML,
	}}}

	res, err := m.client.SendMailV31(&messages)
	if err != nil {
		return fmt.Errorf("mailjet send to %s: %w", msg.To, err)
	}
	for _, r := range res.ResultsV31 {
		if r.Status != "success" {
			return fmt.Errorf("mailjet send to %s: status %s", msg.To, r.Status)
		}
	}
	return nil
}

// LogMailer only logs; used when no mail credentials are configured.
type LogMailer struct {
	log *zap.SugaredLogger
}

func NewLogMailer(log *zap.SugaredLogger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Infow("mail not delivered, no provider configured", "to", msg.To, "subject", msg.Subject)
	return nil
}

// Dispatcher sends mail either inline or in the background. Background
// failures are logged and never reach the caller.
type Dispatcher struct {
	mailer  Mailer
	log     *zap.SugaredLogger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(mailer Mailer, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{mailer: mailer, log: log, timeout: 30 * time.Second}
}

// Send delivers msg before returning.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.mailer.Send(ctx, msg); err != nil {
		d.log.Errorf("Failed to send %q to %s: %v", msg.Subject, msg.To, err)
		return err
	}
	return nil
}

// Go delivers msg on a background goroutine.
func (d *Dispatcher) Go(msg Message) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.Send(context.Background(), msg)
	}()
}

// Wait blocks until every background send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
