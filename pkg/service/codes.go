package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/IPampurin/ReferralTracker/pkg/db"
	"github.com/wb-go/wbf/logger"
)

const (
	sizeCode      = 8 // длина выдаваемого реферального кода по умолчанию
	issueAttempts = 5 // сколько раз пробуем подобрать свободный код
)

// codeChars - только латиница и цифры, чтобы код проходил проверку формата
var codeChars = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz" +
	"0123456789")

// NewRandomCode возвращает случайный код указанной длины
func NewRandomCode(size int) string {

	if size == 0 {
		size = sizeCode
	}

	b := make([]rune, size)
	for i := range b {
		b[i] = codeChars[rand.N(len(codeChars))]
	}

	return string(b)
}

// IssueCode выдаёт агенту реферальный код
// (если код уже выдан, возвращает его без изменений: код неизменяем,
// при совпадении с чужим кодом генерирует новый)
func (s *Service) IssueCode(ctx context.Context, log logger.Logger, agentID string) (*ResponseCode, error) {

	if agentID == "" {
		return nil, ErrAgentRequired
	}

	// 1. Код уже есть - отдаём его
	p, err := s.profiles.GetProfileByID(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if p != nil && p.ReferralCode != "" {
		return toResponseCode(p), nil
	}

	// 2. Генерируем, пока не попадём в свободный
	for range issueAttempts {
		p, err = s.profiles.AssignCode(ctx, agentID, NewRandomCode(0))
		if errors.Is(err, db.ErrCodeTaken) {
			log.Ctx(ctx).Debug("сгенерированный код занят, пробуем ещё", "agent_id", agentID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}

		// 3. Сохраняем в кэш
		if s.cache != nil {
			if err := s.cache.SetProfile(ctx, p.ReferralCode, p); err != nil {
				log.Ctx(ctx).Error("ошибка сохранения в кэш", "error", err)
			}
		}

		log.Ctx(ctx).Info("реферальный код выдан", "agent_id", agentID, "code", p.ReferralCode)

		return toResponseCode(p), nil
	}

	return nil, ErrCodeExhausted
}

// toResponseCode преобразует db.Profile в service.ResponseCode
func toResponseCode(p *db.Profile) *ResponseCode {

	return &ResponseCode{
		AgentID:      p.ID,
		ReferralCode: p.ReferralCode,
		IssuedAt:     p.CodeIssuedAt,
	}
}
