package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Category is one of the three waste classes the classifier may return.
type Category string

const (
	CategoryOrganic   Category = "Organik"
	CategoryInorganic Category = "Anorganik"
	CategoryHazardous Category = "B3"
)

type InputKind string

const (
	InputImage InputKind = "image"
	InputText  InputKind = "text"
)

type Detection struct {
	ID          int64
	Kind        InputKind
	InputText   string
	StorageKey  string
	MimeType    string
	Category    Category
	Explanation string
	Tips        string
	CreatedAt   time.Time
}

type Conversation struct {
	ID        string
	CreatedAt time.Time
}

type StoredMessage struct {
	ID             int64
	ConversationID string
	Role           Role
	Content        string
	CreatedAt      time.Time
}
