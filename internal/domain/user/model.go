package user

import "time"

type User struct {
	ID        int
	Login     string
	Password  string // хэш
	CreatedAt time.Time
}

// Credentials - логин и пароль из запросов регистрации и входа
type Credentials struct {
	Login    string `json:"login" minLength:"3" maxLength:"32"`
	Password string `json:"password" minLength:"8" maxLength:"72"`
}
