package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"hrdesign/internal/routes"
)

// Dispatcher routes notifications either to the queue or straight to the mailer.
type Dispatcher struct {
	Queue    Queue
	Mailer   Mailer
	Renderer *Renderer
	Links    routes.Resolver
	From     string
	FromName string
	Logger   *slog.Logger
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Send delivers n to one recipient. Queued notifications return once enqueued;
// inline ones return the delivery error.
func (d *Dispatcher) Send(ctx context.Context, to Recipient, n Notification) error {
	if to.Email == "" {
		return errors.New("notify: recipient email required")
	}
	msg := n.Message(d.Links)
	if msg.Greeting == "" {
		msg.Greeting = to.greeting()
	}
	env := Envelope{ID: uuid.NewString(), Event: n.Event(), To: to, Message: msg}
	if n.Queued() && d.Queue != nil {
		if err := d.Queue.Enqueue(ctx, env); err != nil {
			return fmt.Errorf("enqueue %s: %w", n.Event(), err)
		}
		d.logger().DebugContext(ctx, "notification queued", "event", n.Event(), "to", to.Email, "id", env.ID)
		return nil
	}
	return d.Deliver(ctx, env)
}

// SendAll sends n to every recipient and joins the failures.
func (d *Dispatcher) SendAll(ctx context.Context, to []Recipient, n Notification) error {
	var errs []error
	for _, r := range to {
		if err := d.Send(ctx, r, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deliver renders an envelope and hands it to the mailer.
func (d *Dispatcher) Deliver(ctx context.Context, env Envelope) error {
	if d.Mailer == nil || d.Renderer == nil {
		return errors.New("notify: mailer not configured")
	}
	out, err := d.Renderer.Render(env.Message)
	if err != nil {
		return err
	}
	err = d.Mailer.Send(ctx, Email{
		From:     d.From,
		FromName: d.FromName,
		To:       env.To.Email,
		ToName:   env.To.Name,
		Subject:  out.Subject,
		HTML:     out.HTML,
		Text:     out.Text,
	})
	if err != nil {
		return fmt.Errorf("deliver %s: %w", env.Event, err)
	}
	d.logger().InfoContext(ctx, "notification sent", "event", env.Event, "to", env.To.Email)
	return nil
}
