package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type Dream struct {
	BaseModelWithDeleted
	UserID    string         `gorm:"type:uuid;not null;index"`
	Title     string         `gorm:"type:varchar(200);not null"`
	Body      string         `gorm:"type:text;not null"`
	DreamDate time.Time      `gorm:"index"` // the night the dream happened, not the entry time
	Mood      string         `gorm:"type:varchar(40)"`
	Lucid     bool           `gorm:"default:false"`
	Tags      pq.StringArray `gorm:"type:text[]" json:"tags" swaggerignore:"true"`

	// Last AI analysis result, as returned by the provider.
	Analysis   datatypes.JSON `gorm:"type:jsonb"`
	AnalyzedAt *time.Time
}

type ChatMessage struct {
	BaseModel
	UserID  string   `gorm:"type:uuid;not null;index"`
	DreamID *string  `gorm:"type:uuid;index"` // optional: chat about a specific dream
	Role    ChatRole `gorm:"type:varchar(20);not null"`
	Content string   `gorm:"type:text;not null"`
}
