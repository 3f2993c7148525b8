// Package common: errors.go определяет пользовательские ошибки,
// которые используются во всех модулях сервера.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отдавать клиенту понятные сообщения.
package common

import "errors"

// Ошибки экономики (баллы, подарки, вывод)
var (
	// ErrInsufficientBalance: недостаточно баллов на счёте
	ErrInsufficientBalance = errors.New("недостаточно баллов на счёте")
	// ErrSelfTransfer: попытка подарить баллы самому себе
	ErrSelfTransfer = errors.New("нельзя дарить баллы самому себе")
	// ErrInvalidAmount: некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrInvalidTxType: неизвестный тип транзакции
	ErrInvalidTxType = errors.New("неизвестный тип транзакции")
	// ErrNotEligibleForClaim: баллов меньше минимального порога вывода
	ErrNotEligibleForClaim = errors.New("недостаточно баллов для вывода (минимум 100)")
	// ErrWalletRequired: для вывода нужен адрес кошелька
	ErrWalletRequired = errors.New("сначала привяжите адрес кошелька")
	// ErrUserNotFound: пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
)

// Ошибки наград
var (
	// ErrAlreadyCheckedIn: чекин за сегодня уже был
	ErrAlreadyCheckedIn = errors.New("вы уже отмечались сегодня")
	// ErrDailyLimitReached: дневной лимит действия исчерпан
	ErrDailyLimitReached = errors.New("дневной лимит исчерпан, попробуйте завтра")
	// ErrUnknownContentKind: неизвестный тип контента
	ErrUnknownContentKind = errors.New("неизвестный тип контента")
	// ErrAlreadyMinted: награда за этот минт уже выдана
	ErrAlreadyMinted = errors.New("награда за эту транзакцию уже начислена")
	// ErrPostNotFound: пост не найден
	ErrPostNotFound = errors.New("пост не найден")
	// ErrInvalidTxHash: хэш транзакции минта не похож на настоящий
	ErrInvalidTxHash = errors.New("некорректный хэш транзакции")
	// ErrInvalidContentID: пустой или слишком длинный идентификатор контента
	ErrInvalidContentID = errors.New("некорректный идентификатор контента")
)

// Ошибки сообщений и звонков
var (
	// ErrNotParticipant: пользователь не участник беседы
	ErrNotParticipant = errors.New("вы не участник этой беседы")
	// ErrConversationNotFound: беседа не найдена
	ErrConversationNotFound = errors.New("беседа не найдена")
	// ErrMessageNotFound: сообщение не найдено
	ErrMessageNotFound = errors.New("сообщение не найдено")
	// ErrSelfConversation: беседа с самим собой
	ErrSelfConversation = errors.New("нельзя начать беседу с самим собой")
	// ErrEmptyMessage: пустое сообщение
	ErrEmptyMessage = errors.New("сообщение не может быть пустым")
	// ErrInvalidEmoji: пустая или слишком длинная реакция
	ErrInvalidEmoji = errors.New("некорректная реакция")
	// ErrCallNotFound: звонок не найден
	ErrCallNotFound = errors.New("звонок не найден")
	// ErrInvalidCallTransition: переход в это состояние звонка невозможен
	ErrInvalidCallTransition = errors.New("недопустимое изменение состояния звонка")
	// ErrInvalidMedia: неизвестный тип звонка
	ErrInvalidMedia = errors.New("тип звонка должен быть audio или video")
	// ErrSelfCall: звонок самому себе
	ErrSelfCall = errors.New("нельзя позвонить самому себе")
	// ErrRecordingUnavailable: запись не удалось начать, звонок продолжается
	ErrRecordingUnavailable = errors.New("запись звонка недоступна")
	// ErrRecordingNotActive: запись не идёт
	ErrRecordingNotActive = errors.New("запись не активна")
	// ErrRecordingTooLarge: запись превысила допустимый размер
	ErrRecordingTooLarge = errors.New("запись слишком большая")
	// ErrStorageDisabled: хранилище файлов не настроено
	ErrStorageDisabled = errors.New("хранилище файлов не настроено")
)

// Ошибки внешних функций (классификация, ассистент)
var (
	// ErrUpstreamRateLimited: сервис перегружен (429)
	ErrUpstreamRateLimited = errors.New("слишком много запросов, попробуйте позже")
	// ErrUpstreamQuotaExhausted: квота сервиса исчерпана (402)
	ErrUpstreamQuotaExhausted = errors.New("лимит использования ИИ исчерпан")
	// ErrImageRequired: для скана нужно фото или ссылка на него
	ErrImageRequired = errors.New("прикрепите фото или ссылку на фото")
	// ErrUpstreamUnavailable: любая другая ошибка сервиса
	ErrUpstreamUnavailable = errors.New("сервис временно недоступен")
)

// Ошибки админки и бота
var (
	// ErrNotAdmin: нет прав администратора
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword: неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts: слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrLinkTokenInvalid: токен привязки Telegram не найден или истёк
	ErrLinkTokenInvalid = errors.New("ссылка для привязки недействительна или устарела")
	// ErrTelegramNotLinked: чат не привязан к профилю
	ErrTelegramNotLinked = errors.New("чат не привязан к профилю")
)
