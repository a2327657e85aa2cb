package service

import (
	"context"
	"fmt"

	"github.com/IPampurin/ReferralTracker/pkg/cache"
	"github.com/IPampurin/ReferralTracker/pkg/db"
	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/logger"
)

// codeRule - формат реферального кода: 4-32 латинских буквы или цифры
const codeRule = "required,alphanum,min=4,max=32"

// CodeResolver сопоставляет публичный реферальный код агенту
type CodeResolver struct {
	profiles db.ProfileMethods
	cache    cache.CacheMethods
	validate *validator.Validate
}

// NewCodeResolver создаёт резолвер кодов (кэш необязателен)
func NewCodeResolver(profiles db.ProfileMethods, cache cache.CacheMethods) *CodeResolver {

	return &CodeResolver{
		profiles: profiles,
		cache:    cache,
		validate: validator.New(),
	}
}

// CheckFormat проверяет формат кода без обращения к хранилищу
func (r *CodeResolver) CheckFormat(code string) error {

	if err := r.validate.Var(code, codeRule); err != nil {
		return ErrCodeMalformed
	}

	return nil
}

// Resolve возвращает идентификатор агента-владельца кода
// (точное сравнение с учётом регистра, без повторных попыток)
func (r *CodeResolver) Resolve(ctx context.Context, log logger.Logger, code string) (string, error) {

	ctx, span := tracer.Start(ctx, "CodeResolver.Resolve")
	defer span.End()

	if err := r.CheckFormat(code); err != nil {
		return "", err
	}

	if r.cache != nil {
		p, err := r.cache.GetProfile(ctx, code)
		if err != nil {
			log.Ctx(ctx).Error("ошибка получения из кэша", "error", err)
		}
		// из кэша берём только точное совпадение, регистр не нормализуется
		if p != nil && p.ReferralCode == code {
			return p.ID, nil
		}
	}

	p, err := r.profiles.GetProfileByCode(ctx, code)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if p == nil {
		return "", ErrCodeNotFound
	}

	if r.cache != nil {
		if err := r.cache.SetProfile(ctx, code, p); err != nil {
			log.Ctx(ctx).Error("ошибка сохранения в кэш", "error", err)
		}
	}

	return p.ID, nil
}
