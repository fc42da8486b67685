package user

import "studysync/internal/domain/user"

type registerInput struct {
	Body user.Credentials
}

type registerOutput struct {
	Body RegisterResponse
}

type RegisterResponse struct {
	ID     int    `json:"user_id"`
	Status string `json:"status"`
}

type loginInput struct {
	Body user.Credentials
}

type loginOutput struct {
	Body LoginResponse
}

type LoginResponse struct {
	Token  string `json:"token"`
	Status string `json:"status"`
}

type logoutInput struct{}

type logoutOutput struct {
	Body StatusResponse
}

type StatusResponse struct {
	Status string `json:"status"`
}
