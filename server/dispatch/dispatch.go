package dispatch

import (
	"fmt"

	"github.com/nudgelabs/nudged/colors"
	"github.com/nudgelabs/nudged/server/apperrors"
	"github.com/nudgelabs/nudged/server/query"
	"github.com/nudgelabs/nudged/server/repos"
	"github.com/nudgelabs/nudged/server/work"
	"go.uber.org/zap"
)

const (
	CREATE_RECURRING_NUDGE_HANDLER = "create_recurring_nudge"
	DELIVER_NUDGE_SEND_HANDLER     = "deliver_nudge_send"

	NUDGE_JOB_PREFIX = "nudge"

	// Upper bound on how many open sends one delivery sweep picks up.
	deliveryBatchSize = 100
)

// Messenger is the SMS side of delivery. *twilio.ClientWrapper satisfies it.
type Messenger interface {
	Enabled() bool
	SendMessage(to, msg string) error
}

// Scheduler turns nudge targets with a recurrence pattern into periodic
// jobs: each tick creates the recurring nudge, fans out its sends and
// hands them to the worker pool for SMS delivery.
type Scheduler struct {
	registry  *repos.Registry
	queries   *query.Bindings
	worker    *work.WorkerPoolAdapter
	messenger Messenger
	logger    *zap.SugaredLogger
}

func NewScheduler(registry *repos.Registry, queries *query.Bindings, worker *work.WorkerPoolAdapter, messenger Messenger, logger *zap.SugaredLogger) (*Scheduler, error) {
	scheduler := &Scheduler{
		registry:  registry,
		queries:   queries,
		worker:    worker,
		messenger: messenger,
		logger:    logger,
	}

	if err := worker.Register(CREATE_RECURRING_NUDGE_HANDLER, scheduler.createRecurringNudge); err != nil {
		return nil, err
	}
	if err := worker.Register(DELIVER_NUDGE_SEND_HANDLER, scheduler.deliverNudgeSend); err != nil {
		return nil, err
	}

	return scheduler, nil
}

// ScheduleAllRecurringNudges registers a periodic job for every target
// that has a recurrence pattern. Called once at server start.
func (scheduler *Scheduler) ScheduleAllRecurringNudges() error {
	targets, err := scheduler.registry.Targets.WithRecurrence()
	if err != nil {
		return err
	}

	scheduled := 0
	for _, target := range targets {
		if err := scheduler.ScheduleTarget(target.ID, target.RecurrencePattern); err != nil {
			scheduler.logger.Errorf("dispatch: unable to schedule target %v: %v", target.ID, err)
			continue
		}
		scheduled++
	}
	scheduler.logger.Infof(colors.Blue("%v recurring nudge(s) scheduled"), scheduled)

	return nil
}

// ScheduleTarget (re)registers the periodic job for one target. Called
// when a target is created or its recurrence pattern changes.
func (scheduler *Scheduler) ScheduleTarget(targetID string, rawPattern []byte) error {
	pattern, err := ParseRecurrencePattern(rawPattern)
	if err != nil {
		return err
	}

	cronExpression, err := pattern.CronExpression()
	if err != nil {
		return err
	}

	// Replace any previous schedule for this target.
	scheduler.UnscheduleTarget(targetID)

	return scheduler.worker.PeriodicallyPerform(cronExpression, work.JobParams{
		Name:    jobTag(targetID),
		Handler: CREATE_RECURRING_NUDGE_HANDLER,
		Args:    map[string]interface{}{"target_id": targetID},
	})
}

func (scheduler *Scheduler) UnscheduleTarget(targetID string) {
	scheduler.worker.RemovePeriodicJob(jobTag(targetID))
}

// createRecurringNudge is the periodic job body: create the nudge for
// the target, then enqueue a delivery job per open send.
func (scheduler *Scheduler) createRecurringNudge(args map[string]interface{}) error {
	targetID, ok := args["target_id"].(string)
	if !ok {
		return fmt.Errorf("createRecurringNudge: missing target_id")
	}

	target, err := scheduler.registry.Targets.Get(targetID)
	if err != nil {
		return fmt.Errorf("createRecurringNudge: %v", err)
	}

	// Create through the cache bindings so cached feeds pick the nudge up.
	nudge, err := scheduler.queries.Nudges.Create(target.OwnerID, repos.CreateNudgeDto{
		Text:          fmt.Sprintf("Time to reach out to %v!", target.Name),
		NudgeTargetID: &target.ID,
	})
	if err != nil {
		return fmt.Errorf("createRecurringNudge: %v", err)
	}
	scheduler.logger.Infof("created recurring nudge %v for target %v", nudge.ID, target.Name)

	return scheduler.EnqueueOpenSends()
}

// EnqueueOpenSends hands every undelivered send to the worker pool. Job
// names are unique per send, so sweeps never double-enqueue.
func (scheduler *Scheduler) EnqueueOpenSends() error {
	sends, err := scheduler.registry.Nudges.UnsentSends(deliveryBatchSize)
	if err != nil {
		return err
	}

	for _, send := range sends {
		err := scheduler.worker.Perform(work.JobParams{
			Name:    fmt.Sprintf("deliver_send_%v", send.ID),
			Handler: DELIVER_NUDGE_SEND_HANDLER,
			Args:    map[string]interface{}{"send_id": send.ID},
		})
		if err != nil {
			scheduler.logger.Errorf("dispatch: unable to enqueue send %v: %v", send.ID, err)
		}
	}

	return nil
}

// deliverNudgeSend is the per-send job body: text the contact & mark
// the send delivered.
func (scheduler *Scheduler) deliverNudgeSend(args map[string]interface{}) error {
	sendID, ok := args["send_id"].(string)
	if !ok {
		return fmt.Errorf("deliverNudgeSend: missing send_id")
	}

	send, err := scheduler.registry.Nudges.GetSend(sendID)
	if apperrors.IsCode(err, apperrors.CodeNotFound) {
		// Send rows cascade with their contact, so a deleted contact can
		// take the send out from under an already-enqueued job.
		scheduler.logger.Infof("send %v no longer exists, dropping delivery", sendID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("deliverNudgeSend: %v", err)
	}

	// Already delivered, e.g. by a sweep racing a recurring tick.
	if send.SentAt != nil {
		return nil
	}

	contact, err := scheduler.registry.Contacts.Get(send.ContactID)
	if apperrors.IsCode(err, apperrors.CodeNotFound) {
		// Contact deleted after fan-out; close the send instead of
		// retrying a text that can never go out.
		scheduler.logger.Infof("contact %v no longer exists, closing send %v", send.ContactID, send.ID)
		return scheduler.registry.Nudges.MarkSendDelivered(send.ID)
	}
	if err != nil {
		return fmt.Errorf("deliverNudgeSend: %v", err)
	}

	nudge, err := scheduler.registry.Nudges.Get(send.NudgeID, "")
	if err != nil {
		return fmt.Errorf("deliverNudgeSend: %v", err)
	}

	if scheduler.messenger.Enabled() && contact.Phone != "" {
		if err := scheduler.messenger.SendMessage(contact.Phone, nudge.Text); err != nil {
			return fmt.Errorf("deliverNudgeSend: %v", err)
		}
	} else {
		scheduler.logger.Infof("sms delivery disabled, skipping text to %v", contact.Name)
	}

	return scheduler.registry.Nudges.MarkSendDelivered(send.ID)
}

func jobTag(targetID string) string {
	return fmt.Sprintf("%v_%v", NUDGE_JOB_PREFIX, targetID)
}
