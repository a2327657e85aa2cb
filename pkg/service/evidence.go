package service

import (
	"strings"

	"github.com/IPampurin/ReferralTracker/pkg/codec"
)

// Evidence - сигналы атрибуции одного запроса, не сохраняется
type Evidence struct {
	URLCode        string // код из ссылки
	CookieRecordID string // идентификатор записи из cookie, только после проверки подписи
	ManualCode     string // код, введённый вручную при регистрации
}

// Empty сообщает, что ни одного сигнала нет
func (e Evidence) Empty() bool {

	return e.URLCode == "" && e.CookieRecordID == "" && e.ManualCode == ""
}

// EvidenceCollector извлекает сигналы из входящего запроса,
// валидность кодов не оценивает
type EvidenceCollector struct {
	codec *codec.Codec
}

func NewEvidenceCollector(c *codec.Codec) *EvidenceCollector {

	return &EvidenceCollector{codec: c}
}

// CollectClick - при переходе единственный сигнал это код из пути
func (ec *EvidenceCollector) CollectClick(pathCode string) Evidence {

	return Evidence{URLCode: strings.TrimSpace(pathCode)}
}

// CollectSignup собирает сигналы при регистрации; cookie попадает в evidence
// только при верной подписи, иначе rejected=true
func (ec *EvidenceCollector) CollectSignup(urlCode, cookieValue, manualCode string) (ev Evidence, rejected bool) {

	ev = Evidence{
		URLCode:    strings.TrimSpace(urlCode),
		ManualCode: strings.TrimSpace(manualCode),
	}

	cookieValue = strings.TrimSpace(cookieValue)
	if cookieValue == "" {
		return ev, false
	}

	id, ok := ec.codec.Verify(cookieValue)
	if !ok {
		cookieRejectedTotal.Inc()
		return ev, true
	}
	ev.CookieRecordID = id

	return ev, false
}
