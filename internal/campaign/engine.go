package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"whatsapp-hub/pkg/models"
)

// Validation and control errors surfaced to callers of Start and Stop.
var (
	ErrNoContacts       = errors.New("no contacts provided")
	ErrNoContent        = errors.New("either message or media files are required")
	ErrNoActiveCampaign = errors.New("no active campaign found")
)

// Contact is one campaign recipient
type Contact struct {
	Name  string
	Phone string
}

// Task is one queued unit of work: a personalized message for one recipient.
// Generation ties the task to the campaign that enqueued it, so tasks left
// over from an overwritten campaign are unambiguously identifiable as stale.
type Task struct {
	UserID     uint
	Generation uint64
	Phone      string
	Message    string
	Media      []models.MediaPayload
	Delay      time.Duration
}

// Sender delivers one task through the gateway. Implementations return an
// error for ordinary delivery failures and must not panic for them.
type Sender interface {
	Send(task Task) error
}

// Store records dispatch outcomes. Both calls are best effort: the engine
// logs failures and moves on.
type Store interface {
	LogMessage(userID uint, phone, content, status string) error
	MarkContactSent(userID uint, phone string) error
}

// pollInterval bounds the idle queue wait so worker shutdown stays prompt
const pollInterval = time.Second

// Engine owns the process-wide task queue and the per-user campaign status
// table. A single background dispatcher drains the queue serially. Start,
// Stop and Progress are safe to call from any goroutine and never block on
// delivery.
type Engine struct {
	sender Sender
	store  Store

	// OnProgress, when set, receives a snapshot after every status change
	OnProgress func(userID uint, p Progress)

	mu         sync.Mutex // guards statuses and generation
	statuses   map[uint]*Status
	generation uint64

	qmu   sync.Mutex // guards queue; producers append, the dispatcher pops
	queue []Task
	wake  chan struct{}

	workerCtx    context.Context
	workerCancel context.CancelFunc
	workerWg     sync.WaitGroup
	workerMu     sync.Mutex
}

func NewEngine(sender Sender, store Store) *Engine {
	return &Engine{
		sender:   sender,
		store:    store,
		statuses: make(map[uint]*Status),
		wake:     make(chan struct{}, 1),
	}
}

// Start validates the request, installs a fresh running status for the user
// (overwriting any previous campaign, whose queued tasks become stale) and
// enqueues one task per contact in input order. It returns a human readable
// summary and never waits for delivery.
func (e *Engine) Start(userID uint, contacts []Contact, template string, delay time.Duration, media []models.MediaPayload) (string, error) {
	if len(contacts) == 0 {
		return "", ErrNoContacts
	}
	if strings.TrimSpace(template) == "" && len(media) == 0 {
		return "", ErrNoContent
	}

	e.mu.Lock()
	e.generation++
	gen := e.generation
	status := &Status{
		State:      StateRunning,
		Total:      len(contacts),
		StartedAt:  time.Now(),
		Delay:      delay,
		HasMedia:   len(media) > 0,
		Generation: gen,
	}
	e.statuses[userID] = status
	snapshot := *status
	e.mu.Unlock()

	for _, contact := range contacts {
		e.enqueue(Task{
			UserID:     userID,
			Generation: gen,
			Phone:      contact.Phone,
			Message:    Personalize(template, contact),
			Media:      media,
			Delay:      delay,
		})
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"contacts":   len(contacts),
		"media":      len(media),
		"generation": gen,
	}).Info("Campaign: started")

	e.notifyProgress(userID, snapshot)

	mediaInfo := ""
	if len(media) > 0 {
		mediaInfo = fmt.Sprintf(" with %d media files", len(media))
	}
	return fmt.Sprintf("Campaign started! %d messages%s queued for processing.", len(contacts), mediaInfo), nil
}

// Stop marks the user's running campaign stopped. Tasks already queued stay
// in the queue and are dropped when the dispatcher dequeues them.
func (e *Engine) Stop(userID uint) error {
	e.mu.Lock()
	st, ok := e.statuses[userID]
	if !ok || st.State != StateRunning {
		e.mu.Unlock()
		return ErrNoActiveCampaign
	}
	st.State = StateStopped
	snapshot := *st
	e.mu.Unlock()

	logrus.WithField("user_id", userID).Info("Campaign: stopped by user")
	e.notifyProgress(userID, snapshot)
	return nil
}

// Progress returns a snapshot view; users with no campaign on record get a
// zero value with state none.
func (e *Engine) Progress(userID uint) Progress {
	e.mu.Lock()
	st, ok := e.statuses[userID]
	if !ok {
		e.mu.Unlock()
		return Progress{State: StateNone}
	}
	snapshot := *st
	e.mu.Unlock()

	return snapshot.progressAt(time.Now())
}

// Personalize fills {name} and {phone} in the template. Unknown placeholders
// stay verbatim; a missing name falls back to "User".
func Personalize(template string, contact Contact) string {
	if template == "" {
		return ""
	}
	name := strings.TrimSpace(contact.Name)
	if name == "" {
		name = "User"
	}
	personalized := strings.ReplaceAll(template, "{name}", name)
	return strings.ReplaceAll(personalized, "{phone}", contact.Phone)
}

func (e *Engine) enqueue(task Task) {
	e.qmu.Lock()
	e.queue = append(e.queue, task)
	e.qmu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) dequeue() (Task, bool) {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	if len(e.queue) == 0 {
		return Task{}, false
	}
	task := e.queue[0]
	e.queue = e.queue[1:]
	return task, true
}

// QueueDepth reports how many tasks are waiting to be dispatched.
func (e *Engine) QueueDepth() int {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	return len(e.queue)
}

func (e *Engine) notifyProgress(userID uint, snapshot Status) {
	if e.OnProgress != nil {
		e.OnProgress(userID, snapshot.progressAt(time.Now()))
	}
}

// StartWorker launches the background dispatcher. The context bounds the
// worker's life: cancelling it (or calling StopWorker) shuts the loop down.
func (e *Engine) StartWorker(ctx context.Context) {
	e.workerMu.Lock()
	if e.workerCtx != nil {
		e.workerMu.Unlock()
		logrus.Info("Campaign: dispatcher already running")
		return
	}
	e.workerCtx, e.workerCancel = context.WithCancel(ctx)
	e.workerMu.Unlock()

	e.workerWg.Add(1)
	go e.runWorker()

	logrus.Info("Campaign: dispatcher started")
}

// StopWorker cancels the dispatcher and waits for it to exit.
func (e *Engine) StopWorker() {
	e.workerMu.Lock()
	if e.workerCancel != nil {
		e.workerCancel()
	}
	e.workerMu.Unlock()

	e.workerWg.Wait()
	logrus.Info("Campaign: dispatcher stopped")
}

func (e *Engine) runWorker() {
	defer e.workerWg.Done()
	ctx := e.workerCtx

	for {
		task, ok := e.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-e.wake:
			case <-time.After(pollInterval):
			}
			continue
		}

		dispatched := e.processTask(task)

		// The per-task delay throttles the outbound rate; stale discards
		// skip it so leftovers never stall the dispatcher. It must stay
		// interruptible or shutdown would hang on slow campaigns.
		if dispatched && task.Delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(task.Delay):
			}
		} else {
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}

// processTask delivers one task and reports whether it was dispatched. Stale
// tasks (stopped, completed, or from an overwritten campaign generation) are
// dropped without counting. The send runs outside the status lock.
func (e *Engine) processTask(task Task) bool {
	e.mu.Lock()
	st, ok := e.statuses[task.UserID]
	current := ok && st.State == StateRunning && st.Generation == task.Generation
	e.mu.Unlock()

	if !current {
		logrus.WithFields(logrus.Fields{
			"user_id":    task.UserID,
			"phone":      task.Phone,
			"generation": task.Generation,
		}).Debug("Campaign: dropping stale task")
		return false
	}

	err := e.send(task)
	e.recordOutcome(task, err)
	return true
}

// send converts a panicking sender into an ordinary delivery error so one
// bad task can never kill the dispatcher.
func (e *Engine) send(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected worker error: %v", r)
		}
	}()
	return e.sender.Send(task)
}

func (e *Engine) recordOutcome(task Task, sendErr error) {
	outcome := "sent"
	if sendErr != nil {
		outcome = "failed"
	}

	e.mu.Lock()
	st, ok := e.statuses[task.UserID]
	if !ok || st.Generation != task.Generation {
		// A newer campaign took over while this task was in flight; its
		// outcome must not pollute the new counters.
		e.mu.Unlock()
		return
	}
	if sendErr != nil {
		st.Failed++
	} else {
		st.Sent++
	}
	st.Processed++
	if st.State == StateRunning && st.Processed >= st.Total {
		st.State = StateCompleted
	}
	snapshot := *st
	e.mu.Unlock()

	if sendErr != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": task.UserID,
			"phone":   task.Phone,
		}).Warnf("Campaign: delivery failed: %v", sendErr)
	} else {
		logrus.WithFields(logrus.Fields{
			"user_id": task.UserID,
			"phone":   task.Phone,
		}).Info("Campaign: message sent")
	}

	content := task.Message
	if len(task.Media) > 0 {
		content = fmt.Sprintf("[Media: %d files] %s", len(task.Media), task.Message)
	}
	if err := e.store.LogMessage(task.UserID, task.Phone, content, outcome); err != nil {
		logrus.Warnf("Campaign: failed to log message for %s: %v", task.Phone, err)
	}
	if sendErr == nil {
		if err := e.store.MarkContactSent(task.UserID, task.Phone); err != nil {
			logrus.Warnf("Campaign: failed to update contact %s: %v", task.Phone, err)
		}
	}

	if snapshot.State == StateCompleted {
		logrus.WithFields(logrus.Fields{
			"user_id": task.UserID,
			"sent":    snapshot.Sent,
			"failed":  snapshot.Failed,
		}).Info("Campaign: completed")
	}

	e.notifyProgress(task.UserID, snapshot)
}
