package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/mail"
	"github.com/markjakearzadon/realestate-gobackend/internal/models"
)

// AgentStore is the slice of the user service the reminder job needs.
type AgentStore interface {
	ListByRole(ctx context.Context, roles ...string) ([]models.User, error)
	UpdateSubscription(ctx context.Context, id primitive.ObjectID, update models.SubscriptionUpdate) (*models.User, error)
}

type Sender interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Result summarises one run of the job.
type Result struct {
	Checked     int
	Deactivated int
	Reminded    int
	Failed      int
}

type Reminder struct {
	store    AgentStore
	sender   Sender
	log      *zap.SugaredLogger
	now      func() time.Time
	observe  func(Result)
	location *time.Location
}

type Option func(*Reminder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reminder) { r.now = now }
}

// WithObserver is called with the result of every run.
func WithObserver(fn func(Result)) Option {
	return func(r *Reminder) { r.observe = fn }
}

// WithLocation sets the zone in which calendar days are counted.
func WithLocation(loc *time.Location) Option {
	return func(r *Reminder) { r.location = loc }
}

func NewReminder(store AgentStore, sender Sender, log *zap.SugaredLogger, opts ...Option) *Reminder {
	r := &Reminder{
		store:    store,
		sender:   sender,
		log:      log,
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schedule registers the job on c using a standard five-field cron spec.
func (r *Reminder) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := r.Run(ctx); err != nil {
			r.log.Errorf("Subscription reminder run failed: %v", err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	return id, nil
}

// Run deactivates lapsed subscriptions and mails agents whose subscription is
// about to lapse. A failure on one agent does not stop the others.
func (r *Reminder) Run(ctx context.Context) (Result, error) {
	var res Result
	agents, err := r.store.ListByRole(ctx, models.RoleAgent)
	if err != nil {
		return res, fmt.Errorf("failed to list agents: %w", err)
	}

	now := r.now().In(r.location)
	for i := range agents {
		agent := &agents[i]
		if agent.SubscriptionExpiry == nil {
			continue
		}
		res.Checked++
		expiry := *agent.SubscriptionExpiry

		if !expiry.After(now) {
			if !agent.HasSubscription {
				continue
			}
			if _, err := r.store.UpdateSubscription(ctx, agent.ID, models.SubscriptionUpdate{Active: false}); err != nil {
				r.log.Errorf("Failed to deactivate subscription for agent %s: %v", agent.ID.Hex(), err)
				res.Failed++
				continue
			}
			r.log.Infof("Deactivated expired subscription for agent %s", agent.Email)
			res.Deactivated++
			continue
		}

		days := DaysLeft(expiry, now)
		if !ReminderDue(days, now) {
			continue
		}
		if err := r.sender.Send(ctx, mail.SubscriptionReminder(agent.Name, agent.Email, days)); err != nil {
			r.log.Errorf("Failed to send reminder to %s: %v", agent.Email, err)
			res.Failed++
			continue
		}
		res.Reminded++
	}

	r.log.Infof("Subscription reminder finished: checked=%d deactivated=%d reminded=%d failed=%d",
		res.Checked, res.Deactivated, res.Reminded, res.Failed)
	if r.observe != nil {
		r.observe(res)
	}
	return res, nil
}

// DaysLeft counts calendar days from now's date to expiry's date, both taken
// in now's location.
func DaysLeft(expiry, now time.Time) int {
	expiry = expiry.In(now.Location())
	a := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// ReminderDue reports whether an agent with daysLeft should be mailed today:
// within three days, or within seven on the last day of the month.
func ReminderDue(daysLeft int, now time.Time) bool {
	if daysLeft < 0 {
		return false
	}
	if daysLeft <= 3 {
		return true
	}
	return LastDayOfMonth(now) && daysLeft <= 7
}

func LastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Month() != t.Month()
}
