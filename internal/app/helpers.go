package app

import (
	"context"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gorm.io/gorm"
)

func pingDatabase(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// uptime renders the time since start like "3 hours".
func uptime(start time.Time) string {
	return strings.TrimSpace(humanize.RelTime(start, time.Now(), "", ""))
}
