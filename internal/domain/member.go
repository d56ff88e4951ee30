package domain

// Member is the purchasing identity. PhoneNumber receives purchase notifications.
type Member struct {
	ID          int64
	Name        string
	Email       string
	PhoneNumber string
}
