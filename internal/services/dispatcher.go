package services

import (
	"context"
	"sync"
	"time"

	"naftapp/internal/metrics"
	"naftapp/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type dispatchJob struct {
	note     Notification
	toAdmins bool
}

// Dispatcher delivers notifications off the request path. Callers enqueue only
// after their transaction has committed; delivery errors are logged and dropped.
type Dispatcher struct {
	db       *gorm.DB
	notifier Notifier
	log      *logrus.Logger
	timeout  time.Duration

	queue   chan dispatchJob
	pending sync.WaitGroup
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the background worker. queueSize bounds buffered jobs.
func NewDispatcher(db *gorm.DB, notifier Notifier, log *logrus.Logger, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Dispatcher{
		db:       db,
		notifier: notifier,
		log:      log,
		timeout:  10 * time.Second,
		queue:    make(chan dispatchJob, queueSize),
		done:     make(chan struct{}),
	}
	go d.worker()
	return d
}

// Notify enqueues a notification for one user. It never blocks.
func (d *Dispatcher) Notify(note Notification) {
	d.enqueue(dispatchJob{note: note})
}

// NotifyAdmins enqueues a notification for every admin account.
func (d *Dispatcher) NotifyAdmins(kind models.NotificationKind, ctx map[string]string) {
	d.enqueue(dispatchJob{note: Notification{Kind: kind, Context: ctx}, toAdmins: true})
}

func (d *Dispatcher) enqueue(job dispatchJob) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	d.pending.Add(1)
	select {
	case d.queue <- job:
	default:
		// 队列满了，丢弃
		d.pending.Done()
		metrics.RecordEvent(metrics.EventNotificationDropped)
		d.log.WithField("kind", job.note.Kind).Warn("Notification queue full, dropping notification")
	}
}

// Flush blocks until every queued notification has been handled.
func (d *Dispatcher) Flush() {
	d.pending.Wait()
}

// Close stops accepting work and waits for the queue to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-ctx.Done():
		d.log.Warn("Notification dispatcher closed before queue drained")
	}
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	for job := range d.queue {
		d.handle(job)
		d.pending.Done()
	}
}

func (d *Dispatcher) handle(job dispatchJob) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("kind", job.note.Kind).Errorf("Notification panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if !job.toAdmins {
		d.deliver(ctx, job.note)
		return
	}

	var admins []models.User
	if err := d.db.WithContext(ctx).Where("role = ?", models.RoleAdmin).Find(&admins).Error; err != nil {
		d.log.WithError(err).WithField("kind", job.note.Kind).Error("Failed to load admins for notification")
		return
	}
	for _, admin := range admins {
		note := job.note
		note.Recipient = Recipient{UserID: admin.ID, Email: admin.Email, Name: admin.Name}
		d.deliver(ctx, note)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, note Notification) {
	if err := d.notifier.Notify(ctx, note); err != nil {
		metrics.RecordEvent(metrics.EventNotificationFailed)
		d.log.WithError(err).WithFields(logrus.Fields{
			"kind":    note.Kind,
			"user_id": note.Recipient.UserID,
		}).Error("Failed to deliver notification")
		return
	}
	metrics.RecordEvent(metrics.EventNotificationSent)
}

// recipientOf resolves a user for notification. ok is false when the user is gone.
func recipientOf(tx *gorm.DB, userID uint) (Recipient, bool) {
	var u models.User
	if err := tx.Select("id", "email", "name").First(&u, userID).Error; err != nil {
		return Recipient{}, false
	}
	return Recipient{UserID: u.ID, Email: u.Email, Name: u.Name}, true
}
