package dto

import (
	"encoding/json"
	"time"
)

type CreateDreamRequest struct {
	Title     string    `json:"title" validate:"required,max=200"`
	Body      string    `json:"body" validate:"required"`
	DreamDate time.Time `json:"dream_date"`
	Mood      string    `json:"mood" validate:"max=40"`
	Lucid     bool      `json:"lucid"`
	Tags      []string  `json:"tags" validate:"max=20,dive,max=40"`
}

type UpdateDreamRequest struct {
	Title     *string    `json:"title" validate:"omitempty,max=200"`
	Body      *string    `json:"body"`
	DreamDate *time.Time `json:"dream_date"`
	Mood      *string    `json:"mood" validate:"omitempty,max=40"`
	Lucid     *bool      `json:"lucid"`
	Tags      []string   `json:"tags" validate:"max=20,dive,max=40"`
}

type DreamResponse struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	DreamDate  time.Time       `json:"dream_date"`
	Mood       string          `json:"mood"`
	Lucid      bool            `json:"lucid"`
	Tags       []string        `json:"tags"`
	Analysis   json.RawMessage `json:"analysis,omitempty"`
	AnalyzedAt *time.Time      `json:"analyzed_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type DreamListResponse struct {
	Dreams []DreamResponse `json:"dreams"`
	Total  int64           `json:"total"`
	Page   int             `json:"page"`
}

type AnalyzeDreamResponse struct {
	DreamID  string          `json:"dream_id"`
	Analysis json.RawMessage `json:"analysis"`
}
