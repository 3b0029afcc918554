package dto

import "time"

type SendChatMessageRequest struct {
	Content string  `json:"content" validate:"required,max=4000"`
	DreamID *string `json:"dream_id" validate:"omitempty,uuid"`
}

type ChatMessageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	DreamID   *string   `json:"dream_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatHistoryResponse struct {
	Messages []ChatMessageResponse `json:"messages"`
}
