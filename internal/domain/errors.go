package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserIDRequired = errors.New("user_id is required")
	// ErrUserNotFound возвращается, если профиль пользователя не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists возвращается при повторном создании профиля.
	ErrUserExists = errors.New("user already exists")
	// Ошибка пустого отображаемого имени после обрезки пробелов.
	ErrDisplayNameRequired = errors.New("display name is required")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// Ошибка повторного сохранения заказа с тем же ID.
	ErrOrderExists = errors.New("order already exists")
	// Ошибка статуса вне перечисления.
	ErrInvalidStatus = errors.New("invalid order status")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrQuantityInvalid = errors.New("quantity must be a positive integer")
	// Ошибка, если товара нет в каталоге сессии.
	ErrProductNotFound = errors.New("product not found")
	// Ошибка локальной правки без названия или с неположительной ценой.
	ErrProductEditInvalid = errors.New("product title and positive price are required")
	// Ошибка недоступного удалённого каталога.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrSignInCancelled = errors.New("sign-in cancelled")
	ErrSignInFailed    = errors.New("sign-in failed")
	// ErrSessionNotFound возвращается для неизвестной или истёкшей сессии.
	ErrSessionNotFound = errors.New("session not found")
	// ErrCounterUpdate означает, что заказ сохранён, а счётчики пользователя нет.
	ErrCounterUpdate = errors.New("user counters update failed")
	// Ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// Ошибка, если ключ уже занят другим запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	ErrIdempotencyKeyNotFound      = errors.New("idempotency key not found")
	// Ошибка пустого ключа идемпотентности.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// Ошибка повторного использования ключа с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different payload")
)

// IsNotFound сообщает, что ошибка означает отсутствие сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrProductNotFound)
}

// IsIdempotencyConflict проверяет конфликт по ключу идемпотентности.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// IsInvalidInput сообщает, что ошибка вызвана некорректными данными запроса.
func IsInvalidInput(err error) bool {
	for _, target := range []error{
		ErrInvalidStatus,
		ErrQuantityInvalid,
		ErrDisplayNameRequired,
		ErrProductEditInvalid,
		ErrUserIDRequired,
		ErrSignInCancelled,
		ErrIdempotencyKeyRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsUnauthenticated сообщает, что у запроса нет действующей сессии.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSignInFailed)
}
