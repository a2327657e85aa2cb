package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IPampurin/ReferralTracker/pkg/db"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClickCreatesReferredRecord - переход /a/ABC123 создаёт запись Referred и подписанную cookie с её id
func TestClickCreatesReferredRecord(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "ABC123")
	ctx := context.Background()

	res, err := env.svc.RecordClick(ctx, env.log, ClickInput{
		Code:          "ABC123",
		Destination:   "https://listing.example/42",
		ChannelOrigin: "email",
		UserAgent:     gofakeit.UserAgent(),
		IPAddress:     gofakeit.IPv4Address(),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Record)

	rec := res.Record
	assert.Equal(t, "agent-a", rec.AgentID)
	assert.Equal(t, db.StatusReferred, rec.Status)
	assert.Equal(t, db.MethodURL, rec.AttributionMethod)
	assert.Nil(t, rec.ReferredIdentityID)
	assert.Equal(t, "https://listing.example/42", rec.Destination)

	id, ok := env.codec.Verify(res.CookieValue)
	require.True(t, ok)
	assert.Equal(t, rec.ID, id)

	stored, err := env.store.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, db.StatusReferred, stored.Status)
}

// TestClickAuthenticatedVisitor - авторизованному посетителю cookie не выдаётся, пользователь проставлен сразу
func TestClickAuthenticatedVisitor(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "ABC123")

	res, err := env.svc.RecordClick(context.Background(), env.log, ClickInput{Code: "ABC123", IdentityID: "user-7"})
	require.NoError(t, err)

	assert.Empty(t, res.CookieValue)
	require.NotNil(t, res.Record.ReferredIdentityID)
	assert.Equal(t, "user-7", *res.Record.ReferredIdentityID)
}

// TestClickEveryClickOwnRecord - повторные переходы не переиспользуют запись
func TestClickEveryClickOwnRecord(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "ABC123")

	first, err := env.svc.RecordClick(context.Background(), env.log, ClickInput{Code: "ABC123"})
	require.NoError(t, err)
	second, err := env.svc.RecordClick(context.Background(), env.log, ClickInput{Code: "ABC123"})
	require.NoError(t, err)

	assert.NotEqual(t, first.Record.ID, second.Record.ID)
	assert.NotEqual(t, first.CookieValue, second.CookieValue)
}

// TestClickInvalidCode - некорректный код не доходит до хранилища, неизвестный даёт ErrCodeNotFound
func TestClickInvalidCode(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "ABC123")
	ctx := context.Background()

	for _, code := range []string{"", "ab", "ABC-123", "код123", "ABC123ABC123ABC123ABC123ABC123ABC"} {
		_, err := env.svc.RecordClick(ctx, env.log, ClickInput{Code: code})
		assert.ErrorIs(t, err, ErrCodeMalformed, "код %q", code)
	}
	assert.Zero(t, env.store.codeLookups)

	_, err := env.svc.RecordClick(ctx, env.log, ClickInput{Code: "ZZZ999"})
	assert.ErrorIs(t, err, ErrCodeNotFound)
	assert.Empty(t, env.store.records)
}

// TestCodeCaseSensitive - коды, различающиеся регистром, принадлежат разным агентам
func TestCodeCaseSensitive(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-upper", "ABC123")
	env.store.addAgent("agent-lower", "abc123")
	ctx := context.Background()

	agent, err := env.svc.codes.Resolve(ctx, env.log, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "agent-upper", agent)

	agent, err = env.svc.codes.Resolve(ctx, env.log, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "agent-lower", agent)

	_, err = env.svc.codes.Resolve(ctx, env.log, "Abc123")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

// TestClickStoreUnavailable - ошибка хранилища оборачивается в ErrStoreUnavailable
func TestClickStoreUnavailable(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.profilesDown = true

	_, err := env.svc.RecordClick(context.Background(), env.log, ClickInput{Code: "ABC123"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.True(t, errors.Is(err, errStoreDown))
}

// clickCookie создаёт запись перехода по коду и возвращает значение cookie
func clickCookie(t *testing.T, env *testEnv, code string) (string, *db.Record) {
	t.Helper()

	res, err := env.svc.RecordClick(context.Background(), env.log, ClickInput{Code: code})
	require.NoError(t, err)

	return res.CookieValue, res.Record
}

// TestSignupCookieOnly - регистрация только с cookie дополняет запись: SignedUp, cookie, пользователь
func TestSignupCookieOnly(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "ABC123")
	cookie, clickRec := clickCookie(t, env, "ABC123")

	res, err := env.svc.RecordSignup(context.Background(), env.log, SignupInput{IdentityID: "user-1", CookieValue: cookie})
	require.NoError(t, err)

	assert.True(t, res.Attributed)
	assert.True(t, res.CookieConsumed)
	assert.Equal(t, db.MethodCookie, res.AttributionMethod)
	require.NotNil(t, res.Record)
	assert.Equal(t, clickRec.ID, res.Record.ID)
	assert.Equal(t, db.StatusSignedUp, res.Record.Status)
	assert.Equal(t, db.MethodCookie, res.Record.AttributionMethod)
	require.NotNil(t, res.Record.ReferredIdentityID)
	assert.Equal(t, "user-1", *res.Record.ReferredIdentityID)
	assert.Len(t, env.store.records, 1)
}

// TestSignupURLBeatsCookie - код из ссылки важнее cookie другого агента
func TestSignupURLBeatsCookie(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "AAAA1111")
	env.store.addAgent("agent-b", "BBBB2222")
	cookie, _ := clickCookie(t, env, "BBBB2222")

	res, err := env.svc.RecordSignup(context.Background(), env.log, SignupInput{
		IdentityID:  "user-1",
		URLCode:     "AAAA1111",
		CookieValue: cookie,
	})
	require.NoError(t, err)

	assert.Equal(t, db.MethodURL, res.AttributionMethod)
	assert.Equal(t, "agent-a", res.Record.AgentID)
	assert.Equal(t, "AAAA1111", res.Record.ReferralCode)
}

// TestSignupURLBackfillsSameAgentCookie - cookie того же агента дополняется, а не дублируется
func TestSignupURLBackfillsSameAgentCookie(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "AAAA1111")
	cookie, clickRec := clickCookie(t, env, "AAAA1111")

	res, err := env.svc.RecordSignup(context.Background(), env.log, SignupInput{
		IdentityID:  "user-1",
		URLCode:     "AAAA1111",
		CookieValue: cookie,
	})
	require.NoError(t, err)

	assert.Equal(t, clickRec.ID, res.Record.ID)
	assert.Equal(t, db.MethodURL, res.Record.AttributionMethod)
	assert.Len(t, env.store.records, 1)
}

// TestSignupCookieBeatsManual - cookie важнее кода, введённого вручную
func TestSignupCookieBeatsManual(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "AAAA1111")
	env.store.addAgent("agent-b", "BBBB2222")
	cookie, _ := clickCookie(t, env, "AAAA1111")

	res, err := env.svc.RecordSignup(context.Background(), env.log, SignupInput{
		IdentityID:  "user-1",
		CookieValue: cookie,
		ManualCode:  "BBBB2222",
	})
	require.NoError(t, err)

	assert.Equal(t, db.MethodCookie, res.AttributionMethod)
	assert.Equal(t, "agent-a", res.Record.AgentID)
}

// TestSignupTamperedCookieFallsBack - cookie с чужой подписью игнорируется, побеждает ручной код
func TestSignupTamperedCookieFallsBack(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "AAAA1111")
	env.store.addAgent("agent-b", "BBBB2222")
	_, clickRec := clickCookie(t, env, "AAAA1111")

	forged := clickRec.ID + ".deadbeef"

	res, err := env.svc.RecordSignup(context.Background(), env.log, SignupInput{
		IdentityID:  "user-1",
		CookieValue: forged,
		ManualCode:  "BBBB2222",
	})
	require.NoError(t, err)

	assert.Equal(t, db.MethodManual, res.AttributionMethod)
	assert.Equal(t, "agent-b", res.Record.AgentID)
	assert.True(t, res.CookieConsumed)

	// запись перехода осталась незанятой
	stored, err := env.store.GetRecord(context.Background(), clickRec.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ReferredIdentityID)
}

// TestSignupExpiredCookieIgnored - cookie на истёкшую запись агенту не засчитывается
func TestSignupExpiredCookieIgnored(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "AAAA1111")
	env.store.addAgent("agent-b", "BBBB2222")
	ctx := context.Background()

	cookie, clickRec := clickCookie(t, env, "AAAA1111")
	env.clock.Advance(91 * 24 * time.Hour)
	n, err := env.svc.ExpireStale(ctx, env.log)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// только cookie - атрибуции нет
	res, err := env.svc.RecordSignup(ctx, env.log, SignupInput{IdentityID: "user-1", CookieValue: cookie})
	require.NoError(t, err)
	assert.False(t, res.Attributed)
	assert.Equal(t, db.MethodNone, res.AttributionMethod)

	// cookie и ручной код - побеждает ручной код
	res, err = env.svc.RecordSignup(ctx, env.log, SignupInput{
		IdentityID:  "user-2",
		CookieValue: cookie,
		ManualCode:  "BBBB2222",
	})
	require.NoError(t, err)
	assert.Equal(t, db.MethodManual, res.AttributionMethod)
	assert.Equal(t, "agent-b", res.Record.AgentID)

	stored, err := env.store.GetRecord(ctx, clickRec.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusExpired, stored.Status)
	assert.Nil(t, stored.ReferredIdentityID)
}

// TestSignupNoEvidence - без сигналов метод none и запись не создаётся
func TestSignupNoEvidence(t *testing.T) {

	env := newTestEnv(t, testSecret)

	res, err := env.svc.RecordSignup(context.Background(), env.log, SignupInput{IdentityID: "user-1"})
	require.NoError(t, err)

	assert.False(t, res.Attributed)
	assert.Equal(t, db.MethodNone, res.AttributionMethod)
	assert.Nil(t, res.Record)
	assert.Empty(t, env.store.records)
}

// TestSignupUnknownCodes - нераспознанные коды равносильны отсутствию сигналов
func TestSignupUnknownCodes(t *testing.T) {

	env := newTestEnv(t, testSecret)

	res, err := env.svc.RecordSignup(context.Background(), env.log, SignupInput{
		IdentityID: "user-1",
		URLCode:    "NOPE1234",
		ManualCode: "bad code!",
	})
	require.NoError(t, err)

	assert.False(t, res.Attributed)
	assert.Equal(t, db.MethodNone, res.AttributionMethod)
}

// TestSignupStoreFailureFallsThrough - недоступность справочника кодов не мешает атрибуции по cookie
func TestSignupStoreFailureFallsThrough(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "AAAA1111")
	cookie, _ := clickCookie(t, env, "AAAA1111")
	env.store.profilesDown = true

	res, err := env.svc.RecordSignup(context.Background(), env.log, SignupInput{
		IdentityID:  "user-1",
		URLCode:     "BBBB2222",
		CookieValue: cookie,
	})
	require.NoError(t, err)

	assert.Equal(t, db.MethodCookie, res.AttributionMethod)
	assert.Equal(t, "agent-a", res.Record.AgentID)
}

// TestSignupIdempotent - повторная регистрация возвращает ту же запись
func TestSignupIdempotent(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "AAAA1111")
	env.store.addAgent("agent-b", "BBBB2222")
	ctx := context.Background()

	first, err := env.svc.RecordSignup(ctx, env.log, SignupInput{IdentityID: "user-1", ManualCode: "AAAA1111"})
	require.NoError(t, err)

	second, err := env.svc.RecordSignup(ctx, env.log, SignupInput{IdentityID: "user-1", URLCode: "BBBB2222"})
	require.NoError(t, err)

	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, "agent-a", second.Record.AgentID)
	assert.Equal(t, db.MethodManual, second.AttributionMethod)
	assert.Len(t, env.store.records, 1)
}

// TestSignupRequiresIdentity - без идентификатора пользователя регистрация не обрабатывается
func TestSignupRequiresIdentity(t *testing.T) {

	env := newTestEnv(t, testSecret)

	_, err := env.svc.RecordSignup(context.Background(), env.log, SignupInput{ManualCode: "AAAA1111"})
	assert.ErrorIs(t, err, ErrIdentityRequired)
}

// TestSignupUnsignedMode - без секрета голый id из cookie принимается
func TestSignupUnsignedMode(t *testing.T) {

	env := newTestEnv(t, "")
	env.store.addAgent("agent-a", "AAAA1111")
	cookie, clickRec := clickCookie(t, env, "AAAA1111")
	assert.Equal(t, clickRec.ID, cookie)

	res, err := env.svc.RecordSignup(context.Background(), env.log, SignupInput{IdentityID: "user-1", CookieValue: cookie})
	require.NoError(t, err)
	assert.Equal(t, db.MethodCookie, res.AttributionMethod)
	assert.Equal(t, clickRec.ID, res.Record.ID)
}

// TestConversionIdempotent - SignedUp -> Converted, повтор ничего не меняет
func TestConversionIdempotent(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "AAAA1111")
	ctx := context.Background()

	signup, err := env.svc.RecordSignup(ctx, env.log, SignupInput{IdentityID: "user-1", ManualCode: "AAAA1111"})
	require.NoError(t, err)

	first, err := env.svc.RecordConversion(ctx, env.log, signup.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusConverted, first.Status)
	require.NotNil(t, first.ConvertedAt)
	convertedAt := *first.ConvertedAt

	env.clock.Advance(time.Hour)

	second, err := env.svc.RecordConversion(ctx, env.log, signup.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusConverted, second.Status)
	assert.Equal(t, convertedAt, *second.ConvertedAt)
}

// TestConversionInvalidTransitions - Referred и неизвестные записи не конвертируются
func TestConversionInvalidTransitions(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "AAAA1111")
	ctx := context.Background()
	_, clickRec := clickCookie(t, env, "AAAA1111")

	_, err := env.svc.RecordConversion(ctx, env.log, clickRec.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.svc.RecordConversion(ctx, env.log, "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

// TestConversionForIdentity - конверсия по идентификатору пользователя
func TestConversionForIdentity(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "AAAA1111")
	ctx := context.Background()

	_, err := env.svc.RecordSignup(ctx, env.log, SignupInput{IdentityID: "user-1", ManualCode: "AAAA1111"})
	require.NoError(t, err)

	rec, err := env.svc.RecordConversionForIdentity(ctx, env.log, "user-1")
	require.NoError(t, err)
	assert.Equal(t, db.StatusConverted, rec.Status)

	_, err = env.svc.RecordConversionForIdentity(ctx, env.log, "user-2")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

// TestExpireStale - несконвертированные записи старше окна хранения помечаются Expired
func TestExpireStale(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "AAAA1111")
	ctx := context.Background()

	_, old := clickCookie(t, env, "AAAA1111")
	env.clock.Advance(91 * 24 * time.Hour)
	_, fresh := clickCookie(t, env, "AAAA1111")

	n, err := env.svc.ExpireStale(ctx, env.log)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, _ := env.store.GetRecord(ctx, old.ID)
	assert.Equal(t, db.StatusExpired, got.Status)
	got, _ = env.store.GetRecord(ctx, fresh.ID)
	assert.Equal(t, db.StatusReferred, got.Status)
}

// TestAgentRecords - записи агента отдаются от новых к старым
func TestAgentRecords(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "AAAA1111")

	_, first := clickCookie(t, env, "AAAA1111")
	env.clock.Advance(time.Minute)
	_, second := clickCookie(t, env, "AAAA1111")

	list, err := env.svc.AgentRecords(context.Background(), env.log, "agent-a", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

// TestIssueCode - код выдаётся один раз, при совпадениях подбирается заново
func TestIssueCode(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.collisions = 2
	ctx := context.Background()

	first, err := env.svc.IssueCode(ctx, env.log, "agent-a")
	require.NoError(t, err)
	assert.NoError(t, env.svc.codes.CheckFormat(first.ReferralCode))
	assert.Len(t, first.ReferralCode, sizeCode)

	second, err := env.svc.IssueCode(ctx, env.log, "agent-a")
	require.NoError(t, err)
	assert.Equal(t, first.ReferralCode, second.ReferralCode)

	agent, err := env.svc.codes.Resolve(ctx, env.log, first.ReferralCode)
	require.NoError(t, err)
	assert.Equal(t, "agent-a", agent)
}

// TestIssueCodeExhausted - если все попытки заняты, возвращается ErrCodeExhausted
func TestIssueCodeExhausted(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.collisions = issueAttempts

	_, err := env.svc.IssueCode(context.Background(), env.log, "agent-a")
	assert.ErrorIs(t, err, ErrCodeExhausted)
}

// recordingSink - приёмник, запоминающий переходы
type recordingSink struct {
	mu     sync.Mutex
	name   string
	fail   bool
	clicks []db.Click
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, c *db.Click) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return errors.New("broker is down")
	}
	s.clicks = append(s.clicks, *c)

	return nil
}

// TestTrackClickAllSinks - переход пишется во все приёмники, ошибка одного не мешает остальным
func TestTrackClickAllSinks(t *testing.T) {

	broken := &recordingSink{name: "broken", fail: true}
	good := &recordingSink{name: "good"}
	env := newTestEnv(t, testSecret, broken, good)

	for range 10 {
		env.svc.TrackClick(env.log, db.Click{
			Code:          "AAAA1111",
			UserAgent:     gofakeit.UserAgent(),
			IPAddress:     gofakeit.IPv4Address(),
			ChannelOrigin: "social",
		})
	}
	// невалидные коды тоже попадают в журнал
	env.svc.TrackClick(env.log, db.Click{Code: "bad code!"})
	env.svc.Wait()

	saved := env.store.savedClicks()
	assert.Len(t, saved, 11)
	assert.Len(t, good.clicks, 11)
	assert.Empty(t, broken.clicks)
	for _, c := range saved {
		assert.Equal(t, env.clock.Now(), c.ClickedAt)
	}
}

// TestCodeAnalytics - агрегаты переходов по коду
func TestCodeAnalytics(t *testing.T) {

	env := newTestEnv(t, testSecret)
	env.store.addAgent("agent-a", "AAAA1111")
	ctx := context.Background()

	for _, origin := range []string{"email", "email", "social"} {
		env.svc.TrackClick(env.log, db.Click{Code: "AAAA1111", UserAgent: "ua", ChannelOrigin: origin})
	}
	env.svc.TrackClick(env.log, db.Click{Code: "other111"})
	env.svc.Wait()

	a, err := env.svc.CodeAnalytics(ctx, env.log, "AAAA1111")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "agent-a", a.AgentID)
	assert.Equal(t, 3, a.TotalClicks)
	assert.Equal(t, map[string]int{"email": 2, "social": 1}, a.ClicksByOrigin)
	assert.Equal(t, map[string]int{"2025-03-01": 3}, a.ClicksByDay)

	missing, err := env.svc.CodeAnalytics(ctx, env.log, "ZZZZ9999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
