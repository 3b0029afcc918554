package services

import (
	"context"

	"dreamlog_backend/internal/ai"
	"dreamlog_backend/internal/dto"
	"dreamlog_backend/internal/models"
	"dreamlog_backend/internal/repositories"
	"dreamlog_backend/pkg/apperrors"

	"gorm.io/gorm"
)

const chatSystemPrompt = `You are a thoughtful dream companion inside a dream
journaling app. Help the user reflect on their dreams. Keep answers short and
never present interpretations as facts.`

// How many prior turns are replayed to the model on each message.
const chatContextMessages = 10

type ChatService interface {
	Send(ctx context.Context, db *gorm.DB, userID string, req *dto.SendChatMessageRequest) (*dto.ChatMessageResponse, error)
	History(db *gorm.DB, userID string, limit int) (*dto.ChatHistoryResponse, error)
}

type chatService struct {
	chatRepo  repositories.ChatRepository
	dreamRepo repositories.DreamRepository
	aiClient  *ai.Client
}

func NewChatService(
	chatRepo repositories.ChatRepository,
	dreamRepo repositories.DreamRepository,
	aiClient *ai.Client,
) ChatService {
	return &chatService{
		chatRepo:  chatRepo,
		dreamRepo: dreamRepo,
		aiClient:  aiClient,
	}
}

func (s *chatService) Send(ctx context.Context, db *gorm.DB, userID string, req *dto.SendChatMessageRequest) (*dto.ChatMessageResponse, error) {
	messages := []ai.Message{{Role: "system", Content: chatSystemPrompt}}

	// When the chat is anchored to a dream, inject its text as context.
	if req.DreamID != nil {
		dream, err := s.dreamRepo.FindByID(db, *req.DreamID)
		if err != nil {
			if apperrors.Is(err, repositories.ErrDreamNotFound) {
				return nil, apperrors.ErrDreamNotFound
			}
			return nil, apperrors.InternalError(err)
		}
		if dream.UserID != userID {
			return nil, apperrors.ErrDreamNotFound
		}
		messages = append(messages, ai.Message{
			Role:    "system",
			Content: "The user is discussing this dream:\nTitle: " + dream.Title + "\n" + dream.Body,
		})
	}

	history, err := s.chatRepo.FindRecent(db, userID, chatContextMessages)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	for _, msg := range history {
		messages = append(messages, ai.Message{Role: string(msg.Role), Content: msg.Content})
	}
	messages = append(messages, ai.Message{Role: "user", Content: req.Content})

	userMsg := &models.ChatMessage{
		UserID:  userID,
		DreamID: req.DreamID,
		Role:    models.ChatRoleUser,
		Content: req.Content,
	}
	if err := s.chatRepo.Create(db, userMsg); err != nil {
		return nil, apperrors.InternalError(err)
	}

	reply, err := s.aiClient.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	assistantMsg := &models.ChatMessage{
		UserID:  userID,
		DreamID: req.DreamID,
		Role:    models.ChatRoleAssistant,
		Content: reply,
	}
	if err := s.chatRepo.Create(db, assistantMsg); err != nil {
		return nil, apperrors.InternalError(err)
	}

	return chatMessageResponse(assistantMsg), nil
}

func (s *chatService) History(db *gorm.DB, userID string, limit int) (*dto.ChatHistoryResponse, error) {
	messages, err := s.chatRepo.FindByUser(db, userID, limit)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	out := make([]dto.ChatMessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, *chatMessageResponse(&messages[i]))
	}
	return &dto.ChatHistoryResponse{Messages: out}, nil
}

func chatMessageResponse(msg *models.ChatMessage) *dto.ChatMessageResponse {
	return &dto.ChatMessageResponse{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		DreamID:   msg.DreamID,
		CreatedAt: msg.CreatedAt,
	}
}
