package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pixelfeed/internal/models"
)

// Migration is a single forward-only schema step. Steps are identified by
// name and applied at most once, in order, before the server accepts traffic.
type Migration struct {
	Name string
	Run  func(db *gorm.DB) error
}

type schemaMigration struct {
	Name      string `gorm:"primaryKey;type:varchar(255)"`
	AppliedAt time.Time
}

func (schemaMigration) TableName() string { return "schema_migrations" }

func migrations() []Migration {
	return []Migration{
		{
			Name: "0001_create_users",
			Run: func(db *gorm.DB) error {
				return db.AutoMigrate(&models.User{})
			},
		},
		{
			Name: "0002_create_posts",
			Run: func(db *gorm.DB) error {
				return db.AutoMigrate(&models.Post{})
			},
		},
	}
}

// Migrate applies all pending migrations and records them in the ledger.
func Migrate(db *gorm.DB, log *logrus.Logger) error {
	if err := db.AutoMigrate(&schemaMigration{}); err != nil {
		return fmt.Errorf("failed to prepare migration ledger: %w", err)
	}

	for _, m := range migrations() {
		var applied int64
		if err := db.Model(&schemaMigration{}).Where("name = ?", m.Name).Count(&applied).Error; err != nil {
			return fmt.Errorf("failed to read migration ledger: %w", err)
		}
		if applied > 0 {
			continue
		}
		if err := m.Run(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
		if err := db.Create(&schemaMigration{Name: m.Name, AppliedAt: time.Now()}).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.Name, err)
		}
		log.WithField("migration", m.Name).Info("applied schema migration")
	}
	return nil
}
