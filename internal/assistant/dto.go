// AngelaMos | 2026
// dto.go

package assistant

type Message struct {
	Role    string `json:"role"    validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,max=8000"`
}

type ChatRequest struct {
	Messages []Message `json:"messages" validate:"required,min=1,max=50,dive"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

type DraftRequest struct {
	Kind  string `json:"kind"  validate:"required,oneof=article newsletter update guide"`
	Topic string `json:"topic" validate:"required,min=3,max=300"`
	Notes string `json:"notes" validate:"max=8000"`
}

type DraftResponse struct {
	Draft string `json:"draft"`
}
