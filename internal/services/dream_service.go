package services

import (
	"context"
	"encoding/json"
	"time"

	"dreamlog_backend/internal/ai"
	"dreamlog_backend/internal/dto"
	"dreamlog_backend/internal/logger"
	"dreamlog_backend/internal/models"
	"dreamlog_backend/internal/repositories"
	"dreamlog_backend/pkg/apperrors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const analysisSystemPrompt = `You are a dream analyst. Given a dream journal entry,
respond with a JSON object: {"themes": [..], "emotions": [..], "symbols": [..],
"interpretation": "..", "lucidity_notes": ".."}. Be concise and grounded in the text.`

type DreamService interface {
	Create(db *gorm.DB, userID string, req *dto.CreateDreamRequest) (*dto.DreamResponse, error)
	Get(db *gorm.DB, userID, dreamID string) (*dto.DreamResponse, error)
	List(db *gorm.DB, userID string, filter repositories.DreamFilter) (*dto.DreamListResponse, error)
	Update(db *gorm.DB, userID, dreamID string, req *dto.UpdateDreamRequest) (*dto.DreamResponse, error)
	Delete(db *gorm.DB, userID, dreamID string) error

	// Analyze sends the dream text to the AI provider and stores the result.
	Analyze(ctx context.Context, db *gorm.DB, userID, dreamID string) (*dto.AnalyzeDreamResponse, error)
}

type dreamService struct {
	dreamRepo repositories.DreamRepository
	aiClient  *ai.Client
}

func NewDreamService(dreamRepo repositories.DreamRepository, aiClient *ai.Client) DreamService {
	return &dreamService{dreamRepo: dreamRepo, aiClient: aiClient}
}

func (s *dreamService) Create(db *gorm.DB, userID string, req *dto.CreateDreamRequest) (*dto.DreamResponse, error) {
	dreamDate := req.DreamDate
	if dreamDate.IsZero() {
		dreamDate = time.Now()
	}

	dream := &models.Dream{
		UserID:    userID,
		Title:     req.Title,
		Body:      req.Body,
		DreamDate: dreamDate,
		Mood:      req.Mood,
		Lucid:     req.Lucid,
		Tags:      req.Tags,
	}
	if err := s.dreamRepo.Create(db, dream); err != nil {
		return nil, apperrors.InternalError(err)
	}
	return dreamResponse(dream), nil
}

func (s *dreamService) Get(db *gorm.DB, userID, dreamID string) (*dto.DreamResponse, error) {
	dream, err := s.ownedDream(db, userID, dreamID)
	if err != nil {
		return nil, err
	}
	return dreamResponse(dream), nil
}

func (s *dreamService) List(db *gorm.DB, userID string, filter repositories.DreamFilter) (*dto.DreamListResponse, error) {
	dreams, total, err := s.dreamRepo.FindByUser(db, userID, filter)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	out := make([]dto.DreamResponse, 0, len(dreams))
	for i := range dreams {
		out = append(out, *dreamResponse(&dreams[i]))
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	return &dto.DreamListResponse{Dreams: out, Total: total, Page: page}, nil
}

func (s *dreamService) Update(db *gorm.DB, userID, dreamID string, req *dto.UpdateDreamRequest) (*dto.DreamResponse, error) {
	dream, err := s.ownedDream(db, userID, dreamID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		dream.Title = *req.Title
	}
	if req.Body != nil {
		dream.Body = *req.Body
	}
	if req.DreamDate != nil {
		dream.DreamDate = *req.DreamDate
	}
	if req.Mood != nil {
		dream.Mood = *req.Mood
	}
	if req.Lucid != nil {
		dream.Lucid = *req.Lucid
	}
	if req.Tags != nil {
		dream.Tags = req.Tags
	}

	if err := s.dreamRepo.Update(db, dream); err != nil {
		return nil, apperrors.InternalError(err)
	}
	return dreamResponse(dream), nil
}

func (s *dreamService) Delete(db *gorm.DB, userID, dreamID string) error {
	if _, err := s.ownedDream(db, userID, dreamID); err != nil {
		return err
	}
	if err := s.dreamRepo.Delete(db, dreamID); err != nil {
		return apperrors.InternalError(err)
	}
	return nil
}

func (s *dreamService) Analyze(ctx context.Context, db *gorm.DB, userID, dreamID string) (*dto.AnalyzeDreamResponse, error) {
	dream, err := s.ownedDream(db, userID, dreamID)
	if err != nil {
		return nil, err
	}

	reply, err := s.aiClient.CompleteJSON(ctx, []ai.Message{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: "Title: " + dream.Title + "\n\n" + dream.Body},
	})
	if err != nil {
		return nil, err
	}

	if !json.Valid([]byte(reply)) {
		return nil, apperrors.UpstreamError(nil, apperrors.CodeAIProviderError, "AI returned malformed analysis")
	}

	analysis := datatypes.JSON(reply)
	if err := s.dreamRepo.SaveAnalysis(db, dreamID, analysis); err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.Info("dream analyzed", "user_id", userID, "dream_id", dreamID)
	return &dto.AnalyzeDreamResponse{
		DreamID:  dreamID,
		Analysis: json.RawMessage(analysis),
	}, nil
}

// ownedDream loads a dream and enforces that it belongs to the caller. A
// foreign dream reads as not found, never as forbidden.
func (s *dreamService) ownedDream(db *gorm.DB, userID, dreamID string) (*models.Dream, error) {
	dream, err := s.dreamRepo.FindByID(db, dreamID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrDreamNotFound) {
			return nil, apperrors.ErrDreamNotFound
		}
		return nil, apperrors.InternalError(err)
	}
	if dream.UserID != userID {
		return nil, apperrors.ErrDreamNotFound
	}
	return dream, nil
}

func dreamResponse(dream *models.Dream) *dto.DreamResponse {
	return &dto.DreamResponse{
		ID:         dream.ID,
		Title:      dream.Title,
		Body:       dream.Body,
		DreamDate:  dream.DreamDate,
		Mood:       dream.Mood,
		Lucid:      dream.Lucid,
		Tags:       dream.Tags,
		Analysis:   json.RawMessage(dream.Analysis),
		AnalyzedAt: dream.AnalyzedAt,
		CreatedAt:  dream.CreatedAt,
	}
}
