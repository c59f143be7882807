package db

import (
	"fmt"

	"github.com/zulandar/boardcore/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GraphRevisionID is the id of the single GraphRevision row.
const GraphRevisionID = 1

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Board{},
		&models.BoardMember{},
		&models.List{},
		&models.Label{},
		&models.Card{},
		&models.CardDep{},
		&models.CardAssignee{},
		&models.Attachment{},
		&models.Comment{},
		&models.SubTask{},
		&models.TimeLog{},
		&models.CustomField{},
		&models.Activity{},
		&models.GraphRevision{},
	}
}

// AutoMigrate creates or updates all tables and seeds the graph revision row.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return SeedGraphRevision(db)
}

// SeedGraphRevision inserts the graph revision row if it is missing.
func SeedGraphRevision(db *gorm.DB) error {
	rev := models.GraphRevision{ID: GraphRevisionID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rev).Error; err != nil {
		return fmt.Errorf("db: seed graph revision: %w", err)
	}
	return nil
}
