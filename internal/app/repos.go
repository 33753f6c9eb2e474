package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/assessgen-backend/internal/platform/logger"
	"github.com/yungbote/assessgen-backend/internal/repos"
)

type Repos struct {
	Assessment repos.AssessmentRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Assessment: repos.NewAssessmentRepo(db, log),
	}
}
