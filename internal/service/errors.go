package service

import "errors"

var (
	ErrDispatch             = errors.New("failed to send verification code")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrUserNotFound         = errors.New("user not found")

	ErrEmptyMessage     = errors.New("message must contain text or media")
	ErrSelfMessage      = errors.New("cannot send a message to yourself")
	ErrSelfDelete       = errors.New("cannot delete a conversation with yourself")
	ErrReceiverNotFound = errors.New("receiver not found")

	ErrUnsupportedMedia = errors.New("only image and video files are allowed")
	ErrFileTooLarge     = errors.New("file is too large")
)

// ValidationError описывает первое невалидное поле запроса
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsClientError проверяет, вызвана ли ошибка запросом, а не сервером
func IsClientError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrSelfMessage) ||
		errors.Is(err, ErrSelfDelete) ||
		errors.Is(err, ErrUnsupportedMedia) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrInvalidOrExpiredCode)
}
