package models

import "time"

// SettlementRow is the durable L2 ledger row for one settlement.
type SettlementRow struct {
	ID                  uint64 `gorm:"column:settlement_id;primaryKey"`
	FromAddress         string `gorm:"column:from_address;size:42"`
	ToAddress           string `gorm:"column:to_address;size:42"`
	Amount              string `gorm:"column:amount"` // decimal string in wei
	SourceTransactionID string `gorm:"column:source_tx_id;uniqueIndex"`
	VerificationRoot    string `gorm:"column:verification_root;size:66"`
	Status              string `gorm:"column:status;index"`
	CreatedAt           int64  `gorm:"column:created_at"`
	DisputeDeadline     int64  `gorm:"column:dispute_deadline"`
	UpdatedAt           time.Time
}

func (SettlementRow) TableName() string {
	return "settlements"
}

// DisputeRow archives the dispute attached to a settlement.
type DisputeRow struct {
	SettlementID uint64 `gorm:"column:settlement_id;primaryKey"`
	Initiator    string `gorm:"column:initiator;size:42"`
	Reason       string `gorm:"column:reason"`
	Details      string `gorm:"column:details"`
	CreatedAt    int64  `gorm:"column:created_at"`
	Resolved     bool   `gorm:"column:resolved"`
	Resolver     string `gorm:"column:resolver;size:42"`
	Resolution   string `gorm:"column:resolution"`
	ResolvedAt   int64  `gorm:"column:resolved_at"`
	UpdatedAt    time.Time
}

func (DisputeRow) TableName() string {
	return "disputes"
}
