package service

import "errors"

var (
	// ErrCodeNotFound - код корректен по формату, но никому не принадлежит
	ErrCodeNotFound = errors.New("реферальный код не найден")

	// ErrCodeMalformed - код не прошёл проверку формата, в хранилище не ходили
	ErrCodeMalformed = errors.New("некорректный реферальный код")

	// ErrSignatureInvalid - подпись cookie не сошлась (для пользователя это просто отсутствие cookie)
	ErrSignatureInvalid = errors.New("неверная подпись реферальной cookie")

	// ErrStoreUnavailable - хранилище вернуло ошибку
	ErrStoreUnavailable = errors.New("хранилище недоступно")

	// ErrMissingSecret - секрет для подписи cookie не настроен
	ErrMissingSecret = errors.New("секрет подписи реферальной cookie не задан")

	// ErrRecordNotFound - реферальная запись не найдена
	ErrRecordNotFound = errors.New("реферальная запись не найдена")

	// ErrRecordExpired - запись из cookie уже истекла и агенту не засчитывается
	ErrRecordExpired = errors.New("реферальная запись истекла")

	// ErrInvalidTransition - запись нельзя перевести в запрошенный статус
	ErrInvalidTransition = errors.New("недопустимый переход статуса реферальной записи")

	// ErrAgentRequired - не передан идентификатор агента
	ErrAgentRequired = errors.New("не указан идентификатор агента")

	// ErrCodeExhausted - не удалось подобрать свободный код за отведённое число попыток
	ErrCodeExhausted = errors.New("не удалось подобрать свободный реферальный код")

	// ErrIdentityRequired - не передан идентификатор пользователя
	ErrIdentityRequired = errors.New("не указан идентификатор пользователя")
)
