package models

import "time"

// User представляет зарегистрированного пользователя.
// PasswordHash никогда не сериализуется в ответы API.
type User struct {
	CreatedAt    time.Time `json:"created_at"` // время регистрации
	Username     string    `json:"username"`   // уникальный username, 1..50 символов
	PasswordHash string    `json:"-"`          // bcrypt хеш пароля
	ID           int64     `json:"id"`         // первичный ключ
}

// Identity is the verified caller attached to a request context.
type Identity struct {
	Username string `json:"username"`
	ID       int64  `json:"id"`
}

// Identity returns the public view of the user.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username}
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string // подписанный access JWT
	RefreshToken string // одноразовый refresh JWT
	TokenType    string // всегда "bearer"
	ExpiresIn    int64  // время жизни access token в секундах
}
