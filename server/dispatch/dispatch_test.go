package dispatch

import (
	"testing"

	"github.com/nudgelabs/nudged/server/cache"
	"github.com/nudgelabs/nudged/server/logger"
	"github.com/nudgelabs/nudged/server/models"
	"github.com/nudgelabs/nudged/server/query"
	"github.com/nudgelabs/nudged/server/repos"
	"github.com/nudgelabs/nudged/server/work"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessenger struct {
	enabled bool
	sent    []string
}

func (m *fakeMessenger) Enabled() bool { return m.enabled }

func (m *fakeMessenger) SendMessage(to, msg string) error {
	m.sent = append(m.sent, to+": "+msg)
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *repos.Registry, *fakeMessenger) {
	t.Helper()

	db, err := models.OpenTest()
	require.NoError(t, err)

	registry := repos.NewRegistry(db)
	queries := query.NewBindings(registry, cache.NewStore())
	messenger := &fakeMessenger{enabled: true}

	scheduler, err := NewScheduler(registry, queries, work.NewWorkerAdapter(db, "UTC"), messenger, logger.NewNopLogger())
	require.NoError(t, err)

	return scheduler, registry, messenger
}

func seedTargetWithContact(t *testing.T, registry *repos.Registry) *repos.TargetWithContacts {
	t.Helper()

	require.NoError(t, registry.Profiles.Create(&models.Profile{
		ID:           "owner-1",
		Email:        "owner@example.com",
		PasswordHash: "x",
	}))

	contact, err := registry.Contacts.Create("owner-1", repos.CreateContactDto{
		Name:  "Harvey",
		Phone: "+15550001111",
	})
	require.NoError(t, err)

	created, err := registry.Targets.Create("owner-1", repos.CreateTargetDto{
		Name:       "Law school friends",
		ContactIDs: []string{contact.ID},
	})
	require.NoError(t, err)

	target, err := registry.Targets.Get(created.ID)
	require.NoError(t, err)

	return target
}

func TestCreateRecurringNudgeFansOutSends(t *testing.T) {
	scheduler, registry, _ := newTestScheduler(t)
	target := seedTargetWithContact(t, registry)

	err := scheduler.createRecurringNudge(map[string]interface{}{"target_id": target.ID})
	require.NoError(t, err)

	nudges, err := registry.Nudges.ListByCreator("owner-1")
	require.NoError(t, err)
	require.Len(t, nudges, 1)
	assert.Contains(t, nudges[0].Text, target.Name)

	// The fan-out already happened inside nudge creation; the sweep in
	// createRecurringNudge enqueued delivery jobs for it.
	sends, err := registry.Nudges.UnsentSends(10)
	require.NoError(t, err)
	assert.Len(t, sends, 1)
}

func TestCreateRecurringNudgeRefreshesCachedFeed(t *testing.T) {
	scheduler, registry, _ := newTestScheduler(t)
	target := seedTargetWithContact(t, registry)

	// Warm a viewer's cached community feed before the tick fires.
	feed, err := scheduler.queries.Nudges.List("viewer-1")
	require.NoError(t, err)
	require.Empty(t, feed)

	require.NoError(t, scheduler.createRecurringNudge(map[string]interface{}{"target_id": target.ID}))

	feed, err = scheduler.queries.Nudges.List("viewer-1")
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Contains(t, feed[0].Text, target.Name)
}

func TestCreateRecurringNudgeUnknownTarget(t *testing.T) {
	scheduler, _, _ := newTestScheduler(t)

	err := scheduler.createRecurringNudge(map[string]interface{}{"target_id": "missing"})
	assert.Error(t, err)

	err = scheduler.createRecurringNudge(map[string]interface{}{})
	assert.Error(t, err)
}

func TestDeliverNudgeSendTextsAndMarksDelivered(t *testing.T) {
	scheduler, registry, messenger := newTestScheduler(t)
	target := seedTargetWithContact(t, registry)

	require.NoError(t, scheduler.createRecurringNudge(map[string]interface{}{"target_id": target.ID}))

	sends, err := registry.Nudges.UnsentSends(10)
	require.NoError(t, err)
	require.Len(t, sends, 1)

	err = scheduler.deliverNudgeSend(map[string]interface{}{"send_id": sends[0].ID})
	require.NoError(t, err)

	require.Len(t, messenger.sent, 1)
	assert.Contains(t, messenger.sent[0], "+15550001111")

	delivered, err := registry.Nudges.GetSend(sends[0].ID)
	require.NoError(t, err)
	assert.NotNil(t, delivered.SentAt)

	// Re-delivery is a no-op.
	require.NoError(t, scheduler.deliverNudgeSend(map[string]interface{}{"send_id": sends[0].ID}))
	assert.Len(t, messenger.sent, 1)
}

func TestDeliverNudgeSendWithMessagingDisabled(t *testing.T) {
	scheduler, registry, messenger := newTestScheduler(t)
	messenger.enabled = false
	target := seedTargetWithContact(t, registry)

	require.NoError(t, scheduler.createRecurringNudge(map[string]interface{}{"target_id": target.ID}))

	sends, err := registry.Nudges.UnsentSends(10)
	require.NoError(t, err)
	require.Len(t, sends, 1)

	// Still marked delivered so it doesn't retry forever.
	require.NoError(t, scheduler.deliverNudgeSend(map[string]interface{}{"send_id": sends[0].ID}))
	assert.Empty(t, messenger.sent)

	delivered, err := registry.Nudges.GetSend(sends[0].ID)
	require.NoError(t, err)
	assert.NotNil(t, delivered.SentAt)
}

func TestDeliverNudgeSendClosesOutDeletedContact(t *testing.T) {
	scheduler, registry, messenger := newTestScheduler(t)
	target := seedTargetWithContact(t, registry)

	require.NoError(t, scheduler.createRecurringNudge(map[string]interface{}{"target_id": target.ID}))

	sends, err := registry.Nudges.UnsentSends(10)
	require.NoError(t, err)
	require.Len(t, sends, 1)

	// Contact removed between fan-out and delivery; the job must not text
	// anyone or keep retrying until it goes dead.
	require.NoError(t, registry.Contacts.Delete(target.Contacts[0].ID))

	require.NoError(t, scheduler.deliverNudgeSend(map[string]interface{}{"send_id": sends[0].ID}))
	assert.Empty(t, messenger.sent)

	remaining, err := registry.Nudges.UnsentSends(10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestDeliverNudgeSendMissingSendIsDropped(t *testing.T) {
	scheduler, _, messenger := newTestScheduler(t)

	require.NoError(t, scheduler.deliverNudgeSend(map[string]interface{}{"send_id": "gone"}))
	assert.Empty(t, messenger.sent)
}

func TestScheduleTargetRequiresValidPattern(t *testing.T) {
	scheduler, registry, _ := newTestScheduler(t)
	target := seedTargetWithContact(t, registry)

	// No recurrence pattern on the target.
	assert.Error(t, scheduler.ScheduleTarget(target.ID, nil))

	assert.NoError(t, scheduler.ScheduleTarget(target.ID, []byte(`{"frequency":"daily","time":"09:00"}`)))
	scheduler.UnscheduleTarget(target.ID)
}
