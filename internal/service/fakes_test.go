package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	appErrors "github.com/brightflock/sendout-backend/internal/errors"
	"github.com/brightflock/sendout-backend/internal/mail"
	"github.com/brightflock/sendout-backend/internal/model"
)

// In-memory repository fakes shared by the service tests. They mirror
// the SQL semantics the production repositories implement, including the
// send log's insert-once behaviour.

type fakeSendoutRepo struct {
	mu       sync.Mutex
	nextID   int64
	sendouts map[int64]*model.Sendout
}

func newFakeSendoutRepo(sendouts ...*model.Sendout) *fakeSendoutRepo {
	r := &fakeSendoutRepo{sendouts: map[int64]*model.Sendout{}}
	for _, s := range sendouts {
		_ = r.Create(s)
	}
	return r
}

func (r *fakeSendoutRepo) Create(s *model.Sendout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == 0 {
		r.nextID++
		s.ID = r.nextID
	} else if s.ID > r.nextID {
		r.nextID = s.ID
	}
	cp := *s
	r.sendouts[s.ID] = &cp
	return nil
}

func (r *fakeSendoutRepo) GetByID(id int64) (*model.Sendout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sendouts[id]
	if !ok {
		return nil, appErrors.NewSendoutNotFound(id)
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSendoutRepo) GetStatus(id int64) (model.SendStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sendouts[id]
	if !ok {
		return "", appErrors.NewSendoutNotFound(id)
	}
	return s.SendStatus, nil
}

func (r *fakeSendoutRepo) ListSendouts(offset, limit int, sendoutType, status string) ([]*model.Sendout, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []*model.Sendout{}
	for _, s := range r.sendouts {
		if sendoutType != "" && string(s.SendoutType) != sendoutType {
			continue
		}
		if status != "" && string(s.SendStatus) != status {
			continue
		}
		cp := *s
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *fakeSendoutRepo) ListSendable() ([]*model.Sendout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Sendout{}
	for _, s := range r.sendouts {
		if s.Sendable() {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeSendoutRepo) UpdateStatus(id int64, status model.SendStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sendouts[id]
	if !ok {
		return appErrors.NewSendoutNotFound(id)
	}
	s.SendStatus = status
	return nil
}

func (r *fakeSendoutRepo) UpdateCursor(id int64, cursor int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sendouts[id]
	if !ok {
		return appErrors.NewSendoutNotFound(id)
	}
	s.Cursor = cursor
	return nil
}

func (r *fakeSendoutRepo) UpdateSchedulingFields(id int64, sendDate, lastSent *time.Time, cursor int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sendouts[id]
	if !ok {
		return appErrors.NewSendoutNotFound(id)
	}
	s.SendDate = sendDate
	s.LastSent = lastSent
	s.Cursor = cursor
	s.SendAttempts = 0
	return nil
}

func (r *fakeSendoutRepo) IncrementSendAttempts(id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sendouts[id]
	if !ok {
		return 0, appErrors.NewSendoutNotFound(id)
	}
	s.SendAttempts++
	return s.SendAttempts, nil
}

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts []model.Contact
	sendLog  *fakeSendLog
}

func newFakeContactRepo(sendLog *fakeSendLog, n int) *fakeContactRepo {
	r := &fakeContactRepo{sendLog: sendLog}
	for i := 1; i <= n; i++ {
		r.contacts = append(r.contacts, model.Contact{
			ID:    int64(i),
			Email: contactEmail(int64(i)),
		})
	}
	return r
}

func contactEmail(id int64) string {
	return fmt.Sprintf("contact%d@example.com", id)
}

var (
	errTransient = errors.New("connection reset")
	errRejected  = errors.New("mailbox does not exist")
)

func (r *fakeContactRepo) GetByID(id int64) (*model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeContactRepo) NextUnsent(sendoutID, _, cursor int64, limit int) ([]model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Contact{}
	for _, c := range r.contacts {
		if c.ID <= cursor || r.sendLog.has(sendoutID, c.ID) {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeContactRepo) CountUnsent(sendoutID, _, cursor int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, c := range r.contacts {
		if c.ID > cursor && !r.sendLog.has(sendoutID, c.ID) {
			count++
		}
	}
	return count, nil
}

func (r *fakeContactRepo) Subscribe(email string, _ int64) (*model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.Email == email {
			cp := c
			return &cp, nil
		}
	}
	c := model.Contact{ID: int64(len(r.contacts) + 1), Email: email}
	r.contacts = append(r.contacts, c)
	return &c, nil
}

type sendLogKey struct {
	sendoutID, contactID int64
}

type fakeSendLog struct {
	mu      sync.Mutex
	entries map[sendLogKey]string
	// writes counts RecordSent calls per pair to detect duplicate
	// delivery attempts.
	writes map[sendLogKey]int
}

func newFakeSendLog() *fakeSendLog {
	return &fakeSendLog{
		entries: map[sendLogKey]string{},
		writes:  map[sendLogKey]int{},
	}
}

func (l *fakeSendLog) has(sendoutID, contactID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[sendLogKey{sendoutID, contactID}]
	return ok
}

func (l *fakeSendLog) RecordSent(sendoutID, contactID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := sendLogKey{sendoutID, contactID}
	l.writes[k]++
	if _, ok := l.entries[k]; !ok {
		l.entries[k] = model.SendLogSent
	}
	return nil
}

func (l *fakeSendLog) RecordFailed(sendoutID, contactID int64, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := sendLogKey{sendoutID, contactID}
	if _, ok := l.entries[k]; !ok {
		l.entries[k] = model.SendLogFailed
	}
	return nil
}

func (l *fakeSendLog) WasSent(sendoutID, contactID int64) (bool, error) {
	return l.has(sendoutID, contactID), nil
}

func (l *fakeSendLog) Stats(sendoutID int64) (map[string]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := map[string]int{model.SendLogSent: 0, model.SendLogFailed: 0}
	for k, status := range l.entries {
		if k.sendoutID == sendoutID {
			stats[status]++
		}
	}
	return stats, nil
}

type fakePendingRepo struct {
	mu      sync.Mutex
	nextID  int64
	entries []*model.PendingContact
}

func (r *fakePendingRepo) Create(p *model.PendingContact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	cp := *p
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *fakePendingRepo) CountByEmailAndList(email string, mailingListID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, p := range r.entries {
		if p.Email == email && p.MailingListID == mailingListID {
			count++
		}
	}
	return count, nil
}

func (r *fakePendingRepo) GetByPID(pid string) (*model.PendingContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.entries {
		if p.PID == pid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakePendingRepo) DeleteByEmailAndList(email string, mailingListID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	for _, p := range r.entries {
		if p.Email != email || p.MailingListID != mailingListID {
			kept = append(kept, p)
		}
	}
	r.entries = kept
	return nil
}

func (r *fakePendingRepo) DeleteOlderThan(cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purged int64
	kept := r.entries[:0]
	for _, p := range r.entries {
		if p.CreatedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, p)
	}
	r.entries = kept
	return purged, nil
}

// brokenContactRepo simulates an infrastructure failure in the
// recipient query, which fails the whole batch job.
type brokenContactRepo struct {
	*fakeContactRepo
}

var errContactQuery = errors.New("contacts query failed")

func (r *brokenContactRepo) NextUnsent(sendoutID, mailingListID, cursor int64, limit int) ([]model.Contact, error) {
	return nil, errContactQuery
}

// flakyAttemptsRepo fails the send_attempts update a fixed number of
// times before delegating.
type flakyAttemptsRepo struct {
	*fakeSendoutRepo
	failuresLeft int
}

func (r *flakyAttemptsRepo) IncrementSendAttempts(id int64) (int, error) {
	if r.failuresLeft > 0 {
		r.failuresLeft--
		return 0, errors.New("attempts update failed")
	}
	return r.fakeSendoutRepo.IncrementSendAttempts(id)
}

// notifierSpy counts terminal notifications.
type notifierSpy struct {
	mu        sync.Mutex
	completed int
	failed    int
}

func (n *notifierSpy) SendoutCompleted(context.Context, *model.Sendout) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed++
	return nil
}

func (n *notifierSpy) SendoutFailed(context.Context, *model.Sendout) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed++
	return nil
}

// flakyTransport fails with a temporary error a fixed number of times
// per recipient before delivering.
type flakyTransport struct {
	mu        sync.Mutex
	failures  map[string]int
	delivered []mail.Message
	calls     int
}

func (t *flakyTransport) Send(_ context.Context, msg *mail.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.failures[msg.To] > 0 {
		t.failures[msg.To]--
		return &appErrors.TransportError{Err: errTransient, Temporary: true}
	}
	t.delivered = append(t.delivered, *msg)
	return nil
}

// rejectingTransport fails permanently for the listed recipients.
type rejectingTransport struct {
	inner    mail.TestTransport
	rejected map[string]bool
}

func (t *rejectingTransport) Send(ctx context.Context, msg *mail.Message) error {
	if t.rejected[msg.To] {
		return &appErrors.TransportError{Err: errRejected, Temporary: false}
	}
	return t.inner.Send(ctx, msg)
}

// gateTransport blocks the first send until released, letting tests
// observe a batch in flight.
type gateTransport struct {
	inner   mail.TestTransport
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateTransport() *gateTransport {
	return &gateTransport{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (t *gateTransport) Send(ctx context.Context, msg *mail.Message) error {
	t.once.Do(func() { close(t.entered) })
	<-t.release
	return t.inner.Send(ctx, msg)
}

// yieldEvery is a batch monitor that yields after every nth send; zero
// never yields.
type yieldEvery struct {
	n     int
	count int
}

func (m *yieldEvery) ShouldYield() bool {
	if m.n <= 0 {
		return false
	}
	m.count++
	return m.count%m.n == 0
}

func (m *yieldEvery) Elapsed() time.Duration { return 0 }
