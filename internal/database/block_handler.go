package database

import (
	"errors"
	"fmt"

	"kestrel/internal/domain"

	"gorm.io/gorm"
)

// GetBlockRecord returns the record for an IP, or nil when the IP has never
// been blocked.
func GetBlockRecord(ip string) (*domain.BlockRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialised")
	}

	var record domain.BlockRecord
	err := DB.Where("ip = ?", ip).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListBlockedIPs returns every IP whose record is currently blocked. Used to
// hydrate the in-memory enforcement cache.
func ListBlockedIPs() ([]string, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialised")
	}

	var ips []string
	err := DB.Model(&domain.BlockRecord{}).
		Where("status = ?", domain.StatusBlocked).
		Pluck("ip", &ips).Error
	return ips, err
}

func CountBlocked() (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialised")
	}

	var count int64
	err := DB.Model(&domain.BlockRecord{}).
		Where("status = ?", domain.StatusBlocked).
		Count(&count).Error
	return count, err
}

func CountOpenBlocks() (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialised")
	}

	var count int64
	err := DB.Model(&domain.BlockRecord{}).
		Where("status = ? AND resolved = ?", domain.StatusBlocked, false).
		Count(&count).Error
	return count, err
}
