package http

type Handler struct{}

func New() *Handler {
	return &Handler{}
}

// MeResponse mirrors the sign-in state a client needs for its navbar.
type MeResponse struct {
	OK       bool   `json:"ok"`
	SignedIn bool   `json:"signed_in"`
	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
	Email    string `json:"email,omitempty"`
}
