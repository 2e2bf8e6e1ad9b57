package model

type User struct {
	ID       int
	Login    string
	Password string
	Name     string
	Email    string
	IsAdmin  bool
}

type LoginInput struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type RegisterInput struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// Contact is what the notification side needs to reach a user.
type Contact struct {
	Name  string
	Email string
}
