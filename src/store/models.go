package store

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// User is a registered account.
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
	PasswordHash string `json:"-"`
	CreatedTs    int64  `json:"createdTs"`
}

// CreateUser is the payload for CreateUser.
type CreateUser struct {
	Email        string
	FullName     string
	PasswordHash string
}

// FindUser filters for GetUser. At least one field should be set.
type FindUser struct {
	ID    *int64
	Email *string
}

// Message is a single entry in a user's chat history.
type Message struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	CreatedTs int64  `json:"createdTs"`
}

// CreateMessage is the payload for CreateMessage.
type CreateMessage struct {
	UserID  int64
	Role    Role
	Content string
}

// FindMessage filters for ListMessages.
type FindMessage struct {
	UserID int64
	// Limit keeps only the most recent messages when > 0.
	Limit int
}
