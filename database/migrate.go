package database

import (
	"fmt"

	"github.com/Belgarat/freedownloadlandingpage/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table and the partial unique indexes
// that keep at most one active configuration per scope.
func Migrate(db *gorm.DB) error {
	for _, t := range models.AllConfigTypes {
		table := t.TableName()
		if err := db.Table(table).AutoMigrate(&models.Config{}); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", table, err)
		}
		for _, stmt := range configIndexStatements(t) {
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to create index on %s: %w", table, err)
			}
		}
	}

	if err := db.AutoMigrate(
		&models.ABTest{},
		&models.VisitorAssignment{},
		&models.ConfigUsage{},
		&models.DownloadToken{},
		&models.AnalyticsEvent{},
		&models.AnalyticsCounter{},
	); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}

	return nil
}

// configIndexStatements works on both sqlite and postgres: both accept partial indexes
// and a bare boolean column as the predicate.
func configIndexStatements(t models.ConfigType) []string {
	table := t.TableName()
	stmts := []string{
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS uk_%s_name ON %s (name)", table, table),
	}
	if t.LanguageScoped() {
		stmts = append(stmts,
			fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS uk_%s_active ON %s (language) WHERE is_active", table, table),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_language ON %s (language)", table, table),
		)
	} else {
		stmts = append(stmts,
			fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS uk_%s_active ON %s (is_active) WHERE is_active", table, table),
		)
	}
	return stmts
}
