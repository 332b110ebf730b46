/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/obsrec/internal/models"
)

// Migrate applies the journal schema using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(&models.RecordingEvent{}); err != nil {
		return fmt.Errorf("auto-migrate journal: %w", err)
	}
	return nil
}
