package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/model"
	userrepo "github.com/edgargavioli/pi5-app-estudo-sub001/internal/repository/user"
	"github.com/edgargavioli/pi5-app-estudo-sub001/pkg/push"
)

type fakeService struct {
	due      []model.Notification
	users    map[string]model.User
	statuses map[uuid.UUID]model.Status
}

func newFakeService() *fakeService {
	return &fakeService{users: map[string]model.User{}, statuses: map[uuid.UUID]model.Status{}}
}

func (f *fakeService) Due(context.Context, time.Time) ([]model.Notification, error) {
	return f.due, nil
}

func (f *fakeService) StatusByID(_ context.Context, _ retry.Strategy, id uuid.UUID) (model.Status, error) {
	status, ok := f.statuses[id]
	if !ok {
		return model.StatusPending, nil
	}
	return status, nil
}

func (f *fakeService) UserByID(_ context.Context, id string) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, userrepo.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeService) SetStatus(_ context.Context, _ retry.Strategy, id uuid.UUID, status model.Status) error {
	f.statuses[id] = status
	return nil
}

type fakeGateway struct {
	sent    []push.Note
	tokens  []string
	failFor map[string]error // keyed by device token
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{failFor: map[string]error{}}
}

func (f *fakeGateway) Send(_ context.Context, token string, note push.Note, _ map[string]string) error {
	if err, ok := f.failFor[token]; ok {
		return err
	}
	f.sent = append(f.sent, note)
	f.tokens = append(f.tokens, token)
	return nil
}

var strategy = retry.Strategy{Attempts: 1, Delay: time.Millisecond}

func pending(userID string, typ model.Type, snap model.EntitySnapshot) model.Notification {
	return model.Notification{
		ID:           uuid.New(),
		UserID:       userID,
		Type:         typ,
		EntityID:     "exam-1",
		EntityType:   "exam",
		EntityData:   snap,
		ScheduledFor: time.Now().Add(-time.Minute),
		Status:       model.StatusPending,
	}
}

func TestTick_DeliversAndMarksSent(t *testing.T) {
	svc := newFakeService()
	gw := newFakeGateway()
	svc.users["user-1"] = model.User{ID: "user-1", DeviceToken: "token-abc"}

	n := pending("user-1", model.TypeExamToday, model.EntitySnapshot{Title: "Physics", Time: "14:30"})
	svc.due = []model.Notification{n}

	s := NewScheduler(svc, gw, time.Second, time.Second, strategy)
	s.Tick(context.Background())

	assert.Equal(t, model.StatusSent, svc.statuses[n.ID])
	require.Len(t, gw.sent, 1)
	assert.Equal(t, []string{"token-abc"}, gw.tokens)
	assert.Equal(t, "Exam today", gw.sent[0].Title)
}

func TestTick_PrefersPreRenderedContent(t *testing.T) {
	svc := newFakeService()
	gw := newFakeGateway()
	svc.users["user-1"] = model.User{ID: "user-1", DeviceToken: "token-abc"}

	n := pending("user-1", model.TypeExamToday, model.EntitySnapshot{
		NotificationTitle: "Custom title",
		NotificationBody:  "Custom body",
	})
	svc.due = []model.Notification{n}

	s := NewScheduler(svc, gw, time.Second, time.Second, strategy)
	s.Tick(context.Background())

	require.Len(t, gw.sent, 1)
	assert.Equal(t, push.Note{Title: "Custom title", Body: "Custom body"}, gw.sent[0])
}

func TestTick_MissingRecipientMarksFailed(t *testing.T) {
	svc := newFakeService()
	gw := newFakeGateway()

	n := pending("ghost", model.TypeExamToday, model.EntitySnapshot{})
	svc.due = []model.Notification{n}

	s := NewScheduler(svc, gw, time.Second, time.Second, strategy)
	s.Tick(context.Background())

	assert.Equal(t, model.StatusFailed, svc.statuses[n.ID])
	assert.Empty(t, gw.sent)
}

func TestTick_GatewayErrorMarksFailed(t *testing.T) {
	svc := newFakeService()
	gw := newFakeGateway()
	svc.users["user-1"] = model.User{ID: "user-1", DeviceToken: "token-abc"}
	gw.failFor["token-abc"] = errors.New("gateway unavailable")

	n := pending("user-1", model.TypeExam1Hour, model.EntitySnapshot{})
	svc.due = []model.Notification{n}

	s := NewScheduler(svc, gw, time.Second, time.Second, strategy)
	s.Tick(context.Background())

	assert.Equal(t, model.StatusFailed, svc.statuses[n.ID])
}

func TestTick_RecordOutcomesAreIndependent(t *testing.T) {
	svc := newFakeService()
	gw := newFakeGateway()
	svc.users["user-1"] = model.User{ID: "user-1", DeviceToken: "good-token"}
	svc.users["user-2"] = model.User{ID: "user-2", DeviceToken: "bad-token"}
	gw.failFor["bad-token"] = errors.New("invalid token")

	failing := pending("user-2", model.TypeExamToday, model.EntitySnapshot{})
	missing := pending("ghost", model.TypeExamToday, model.EntitySnapshot{})
	ok := pending("user-1", model.TypeExamToday, model.EntitySnapshot{})
	svc.due = []model.Notification{failing, missing, ok}

	s := NewScheduler(svc, gw, time.Second, time.Second, strategy)
	s.Tick(context.Background())

	assert.Equal(t, model.StatusFailed, svc.statuses[failing.ID])
	assert.Equal(t, model.StatusFailed, svc.statuses[missing.ID])
	assert.Equal(t, model.StatusSent, svc.statuses[ok.ID])
	assert.Equal(t, []string{"good-token"}, gw.tokens)
}

func TestTick_SkipsAlreadyFinalizedRecord(t *testing.T) {
	svc := newFakeService()
	gw := newFakeGateway()
	svc.users["user-1"] = model.User{ID: "user-1", DeviceToken: "token-abc"}

	n := pending("user-1", model.TypeExamToday, model.EntitySnapshot{})
	svc.due = []model.Notification{n}
	svc.statuses[n.ID] = model.StatusSent // finalized between FindDue and delivery

	s := NewScheduler(svc, gw, time.Second, time.Second, strategy)
	s.Tick(context.Background())

	assert.Empty(t, gw.sent)
	assert.Equal(t, model.StatusSent, svc.statuses[n.ID])
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	svc := newFakeService()
	s := NewScheduler(svc, newFakeGateway(), 10*time.Millisecond, time.Second, strategy)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
