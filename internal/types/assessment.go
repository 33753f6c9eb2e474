package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Assessment struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title          string         `gorm:"column:title;not null" json:"title"`
	Description    string         `gorm:"column:description" json:"description"`
	Type           string         `gorm:"column:type;not null;default:MCQ" json:"type"`
	Difficulty     string         `gorm:"column:difficulty;not null;default:medium" json:"difficulty"`
	SourceKind     string         `gorm:"column:source_kind;index" json:"source_kind"`
	SourceURL      string         `gorm:"column:source_url" json:"source_url,omitempty"`
	Provider       string         `gorm:"column:provider" json:"provider"`
	Questions      datatypes.JSON `gorm:"column:questions" json:"questions"`
	QuestionCount  int            `gorm:"column:question_count;not null;default:0" json:"question_count"`
	Tags           datatypes.JSON `gorm:"column:tags" json:"tags"`
	Metadata       datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	Transcript     string         `gorm:"column:transcript;type:text" json:"transcript,omitempty"`
	IsPublic       bool           `gorm:"column:is_public;not null;default:true" json:"is_public"`
	IdempotencyKey *string        `gorm:"column:idempotency_key;uniqueIndex" json:"-"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Assessment) TableName() string { return "assessment" }

func (a *Assessment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
