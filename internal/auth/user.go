package auth

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is a single row of the user registry.
type User struct {
	Username     string
	PasswordHash string
	AvatarPath   string
	Role         Role
}
