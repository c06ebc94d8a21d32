package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferSending   TransferStatus = "sending"
	TransferFinished  TransferStatus = "finished"
	TransferCancelled TransferStatus = "cancelled"
	TransferFailed    TransferStatus = "failed"
)

// TransferRecord is the history entry of one file send.
type TransferRecord struct {
	ID     uint64 `gorm:"primaryKey"`
	Name   string `gorm:"not null"`
	Type   string `gorm:"not null"`
	Device string
	Policy string
	// Checksum is the hex xxhash of the uncompressed payload.
	Checksum       string `gorm:"index"`
	ActualSize     int
	CompressedSize int
	SentBytes      int
	Status         TransferStatus `gorm:"default:pending"`
	Error          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	FinishedAt     *time.Time
}

// CreateTransfer persists a new TransferRecord.
func CreateTransfer(db *gorm.DB, record *TransferRecord) error {
	return db.Create(record).Error
}

// UpdateTransfer saves every field of an existing TransferRecord.
func UpdateTransfer(db *gorm.DB, record *TransferRecord) error {
	return db.Save(record).Error
}

// FindTransferByID returns the record with the given ID or nil if there is no match.
func FindTransferByID(db *gorm.DB, id uint64) (*TransferRecord, error) {
	var record TransferRecord
	err := db.First(&record, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &record, nil
}

// FindRecentTransfers returns up to limit records, newest first.
func FindRecentTransfers(db *gorm.DB, limit int) ([]TransferRecord, error) {
	var records []TransferRecord
	err := db.Order("id desc").Limit(limit).Find(&records).Error
	return records, err
}

// FindTransfersByChecksum returns every send of the payload with the given
// checksum, oldest first.
func FindTransfersByChecksum(db *gorm.DB, checksum string) ([]TransferRecord, error) {
	var records []TransferRecord
	err := db.Where("checksum = ?", checksum).Order("id").Find(&records).Error
	return records, err
}
