package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/IPampurin/ReferralTracker/pkg/codec"
	"github.com/IPampurin/ReferralTracker/pkg/db"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/logger"
)

const testSecret = "service-test-secret"

var errStoreDown = errors.New("connection refused")

// memStore - хранилище в памяти, реализует ProfileMethods, RecordMethods и ClickMethods
type memStore struct {
	mu       sync.Mutex
	profiles map[string]*db.Profile // по id агента
	records  map[string]*db.Record
	clicks   []db.Click

	profilesDown bool // GetProfileByCode возвращает ошибку
	collisions   int  // сколько первых AssignCode вернут ErrCodeTaken
	codeLookups  int
}

func newMemStore() *memStore {

	return &memStore{
		profiles: make(map[string]*db.Profile),
		records:  make(map[string]*db.Record),
	}
}

func (m *memStore) addAgent(id, code string) {

	m.mu.Lock()
	defer m.mu.Unlock()

	m.profiles[id] = &db.Profile{ID: id, ReferralCode: code, CreatedAt: time.Now().UTC(), CodeIssuedAt: time.Now().UTC()}
}

func (m *memStore) GetProfileByCode(_ context.Context, code string) (*db.Profile, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	m.codeLookups++
	if m.profilesDown {
		return nil, errStoreDown
	}
	for _, p := range m.profiles {
		if p.ReferralCode != "" && p.ReferralCode == code {
			cp := *p
			return &cp, nil
		}
	}

	return nil, nil
}

func (m *memStore) GetProfileByID(_ context.Context, id string) (*db.Profile, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p

	return &cp, nil
}

func (m *memStore) AssignCode(_ context.Context, agentID, code string) (*db.Profile, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.collisions > 0 {
		m.collisions--
		return nil, db.ErrCodeTaken
	}

	p, ok := m.profiles[agentID]
	if !ok {
		p = &db.Profile{ID: agentID, CreatedAt: time.Now().UTC()}
		m.profiles[agentID] = p
	}
	if p.ReferralCode == "" {
		p.ReferralCode = code
		p.CodeIssuedAt = time.Now().UTC()
	}
	cp := *p

	return &cp, nil
}

func (m *memStore) GetProfilesOfPeriod(_ context.Context, _ time.Duration) ([]*db.Profile, error) {

	return nil, nil
}

func (m *memStore) CreateRecord(_ context.Context, r *db.Record) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	m.records[r.ID] = &cp

	return nil
}

func (m *memStore) GetRecord(_ context.Context, id string) (*db.Record, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	cp := *r

	return &cp, nil
}

func (m *memStore) GetRecordByIdentity(_ context.Context, identityID string) (*db.Record, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	var last *db.Record
	for _, r := range m.records {
		if r.ReferredIdentityID == nil || *r.ReferredIdentityID != identityID {
			continue
		}
		if last == nil || r.CreatedAt.After(last.CreatedAt) {
			last = r
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last

	return &cp, nil
}

func (m *memStore) AttachIdentity(_ context.Context, id, identityID, method string, at time.Time) (bool, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok || r.ReferredIdentityID != nil || r.Status != db.StatusReferred {
		return false, nil
	}
	identity := identityID
	r.ReferredIdentityID = &identity
	r.Status = db.StatusSignedUp
	r.AttributionMethod = method
	r.UpdatedAt = at

	return true, nil
}

func (m *memStore) MarkConverted(_ context.Context, id string, at time.Time) (bool, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok || r.Status != db.StatusSignedUp {
		return false, nil
	}
	r.Status = db.StatusConverted
	r.ConvertedAt = &at
	r.UpdatedAt = at

	return true, nil
}

func (m *memStore) GetRecordsByAgent(_ context.Context, agentID string, limit int) ([]*db.Record, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	var list []*db.Record
	for _, r := range m.records {
		if r.AgentID == agentID {
			cp := *r
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

func (m *memStore) ExpireStale(_ context.Context, before, at time.Time) (int64, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, r := range m.records {
		if (r.Status == db.StatusReferred || r.Status == db.StatusSignedUp) && r.CreatedAt.Before(before) {
			r.Status = db.StatusExpired
			r.UpdatedAt = at
			n++
		}
	}

	return n, nil
}

func (m *memStore) SaveClick(_ context.Context, c *db.Click) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = len(m.clicks) + 1
	m.clicks = append(m.clicks, *c)

	return nil
}

func (m *memStore) savedClicks() []db.Click {

	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]db.Click(nil), m.clicks...)
}

// countBy считает переходы по коду, сгруппированные ключом
func (m *memStore) countBy(code string, key func(db.Click) string) map[string]int {

	m.mu.Lock()
	defer m.mu.Unlock()

	res := make(map[string]int)
	for _, c := range m.clicks {
		if c.Code == code {
			res[key(c)]++
		}
	}

	return res
}

func (m *memStore) CountClicks(_ context.Context, code string) (int, error) {

	total := 0
	for _, v := range m.countBy(code, func(db.Click) string { return "" }) {
		total += v
	}

	return total, nil
}

func (m *memStore) CountClicksByDay(_ context.Context, code string, _, _ time.Time) (map[string]int, error) {

	return m.countBy(code, func(c db.Click) string { return c.ClickedAt.Format("2006-01-02") }), nil
}

func (m *memStore) CountClicksByMonth(_ context.Context, code string, _, _ time.Time) (map[string]int, error) {

	return m.countBy(code, func(c db.Click) string { return c.ClickedAt.Format("2006-01") }), nil
}

func (m *memStore) CountClicksByUserAgent(_ context.Context, code string) (map[string]int, error) {

	return m.countBy(code, func(c db.Click) string { return c.UserAgent }), nil
}

func (m *memStore) CountClicksByOrigin(_ context.Context, code string) (map[string]int, error) {

	return m.countBy(code, func(c db.Click) string { return c.ChannelOrigin }), nil
}

// fixedClock - часы, которые двигаются только вручную
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {

	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// testEnv - сервис поверх хранилища в памяти
type testEnv struct {
	svc   *Service
	store *memStore
	codec *codec.Codec
	clock *fixedClock
	log   logger.Logger
}

func newTestEnv(t *testing.T, secret string, sinks ...ClickSink) *testEnv {
	t.Helper()

	log, err := logger.InitLogger(logger.ZapEngine, "service-test", "", logger.WithLevel(logger.InfoLevel))
	require.NoError(t, err)

	store := newMemStore()
	clock := &fixedClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := codec.New(secret)

	svc := New(Options{
		Profiles:     store,
		Records:      store,
		Clicks:       store,
		Codec:        c,
		Clock:        clock,
		NewID:        uuid.NewString,
		Sinks:        sinks,
		ClickTimeout: time.Second,
		Retention:    90 * 24 * time.Hour,
	})

	return &testEnv{svc: svc, store: store, codec: c, clock: clock, log: log}
}
