package database

import (
	"errors"
	"time"

	"github.com/sandwichproject/coordinator/internal/collections"
	"github.com/sandwichproject/coordinator/internal/messaging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationNormalizeGroupCollections = "2025-07-20_normalize_group_collections"
	migrationTrimCollectionHostNames   = "2025-07-21_trim_collection_host_names"
	migrationBackfillThreadIDs         = "2025-07-22_backfill_message_thread_ids"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeGroupCollections, apply: normalizeGroupCollections},
		{name: migrationTrimCollectionHostNames, apply: trimCollectionHostNames},
		{name: migrationBackfillThreadIDs, apply: backfillThreadIDs},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// normalizeGroupCollections rewrites absent group payloads to the empty list.
func normalizeGroupCollections(db *gorm.DB) error {
	return db.Model(&collections.Collection{}).
		Where("group_collections IS NULL OR TRIM(group_collections) IN ?", []string{"", "null"}).
		Update("group_collections", "[]").Error
}

func trimCollectionHostNames(db *gorm.DB) error {
	return db.Model(&collections.Collection{}).
		Where("host_name <> TRIM(host_name)").
		Update("host_name", gorm.Expr("TRIM(host_name)")).Error
}

// backfillThreadIDs makes rows without a thread the root of their own thread.
func backfillThreadIDs(db *gorm.DB) error {
	return db.Model(&messaging.Message{}).
		Where("thread_id = 0").
		Update("thread_id", gorm.Expr("id")).Error
}
