// Package api содержит DTO HTTP API, общие для сервера и клиента.
package api

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest представляет запрос на обновление пары токенов.
// Используется также для logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserResponse описывает пользователя без секретов
type UserResponse struct {
	Username string `json:"username"`
	ID       int64  `json:"id"`
}

// TokenResponse представляет ответ с токенами доступа
type TokenResponse struct {
	AccessToken  string `json:"access_token"`  // JWT access token
	RefreshToken string `json:"refresh_token"` // JWT refresh token, одноразовый
	TokenType    string `json:"token_type"`    // всегда "bearer"
	ExpiresIn    int64  `json:"expires_in"`    // время жизни access token в секундах
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // текст HTTP статуса
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
