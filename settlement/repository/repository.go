// Package repository archives settlement rows into postgres. The in-memory
// ledger stays authoritative for transitions; this is the durable L2 record
// auditors and downstream tooling read.
package repository

import (
	"fmt"
	"log"
	"time"

	"gamebridge/settlement/repository/models"
	"gamebridge/types"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RepositoryError represents repository layer errors
type RepositoryError struct {
	Code    string
	Message string
	Detail  string
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Detail)
}

// Repository handles the settlement archive tables.
type Repository struct {
	db *gorm.DB
}

func NewRepository() *Repository {
	return &Repository{}
}

// ConnectDB establishes the database connection and performs migrations.
func (r *Repository) ConnectDB(dsn string) error {
	for i := 0; i < 10; i++ {
		log.Printf("Database connection attempt %d...\n", i+1)
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			log.Printf("Connection attempt %d failed: %v\n", i+1, err)
			time.Sleep(2 * time.Second)
			continue
		}
		r.db = db
		log.Println("Connected to settlement archive database")

		if err := r.Migrate(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		return nil
	}
	return fmt.Errorf("failed to connect to database after 10 attempts")
}

// Migrate creates the archive tables if missing.
func (r *Repository) Migrate() error {
	migrator := r.db.Migrator()

	tables := []interface{}{
		&models.SettlementRow{},
		&models.DisputeRow{},
	}

	for _, table := range tables {
		if !migrator.HasTable(table) {
			if err := migrator.CreateTable(table); err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
		}
	}

	return nil
}

// RecordSettlement upserts the archive row for a settlement.
func (r *Repository) RecordSettlement(st *types.Settlement) error {
	row := models.SettlementRow{
		ID:                  st.ID,
		FromAddress:         st.From.Hex(),
		ToAddress:           st.To.Hex(),
		Amount:              st.Amount.String(),
		SourceTransactionID: st.SourceTransactionID,
		VerificationRoot:    st.VerificationRoot.Hex(),
		Status:              string(st.Status),
		CreatedAt:           st.CreatedAt,
		DisputeDeadline:     st.DisputeDeadline,
	}

	dbTx := r.db.Begin()
	err := dbTx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "settlement_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		dbTx.Rollback()
		return &RepositoryError{
			Code:    "UPSERT_FAILED",
			Message: "Failed to archive settlement",
			Detail:  err.Error(),
		}
	}

	if err := dbTx.Commit().Error; err != nil {
		return &RepositoryError{
			Code:    "COMMIT_FAILED",
			Message: "Failed to commit transaction",
			Detail:  err.Error(),
		}
	}
	return nil
}

// RecordDispute upserts the archive row for a dispute.
func (r *Repository) RecordDispute(d *types.Dispute) error {
	row := models.DisputeRow{
		SettlementID: d.SettlementID,
		Initiator:    d.Initiator.Hex(),
		Reason:       d.Reason,
		Details:      d.Details,
		CreatedAt:    d.CreatedAt,
		Resolved:     d.Resolved,
		Resolver:     d.Resolver.Hex(),
		Resolution:   d.Resolution,
		ResolvedAt:   d.ResolvedAt,
	}

	dbTx := r.db.Begin()
	err := dbTx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "settlement_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		dbTx.Rollback()
		return &RepositoryError{
			Code:    "UPSERT_FAILED",
			Message: "Failed to archive dispute",
			Detail:  err.Error(),
		}
	}

	if err := dbTx.Commit().Error; err != nil {
		return &RepositoryError{
			Code:    "COMMIT_FAILED",
			Message: "Failed to commit transaction",
			Detail:  err.Error(),
		}
	}
	return nil
}

// ListSettlements returns archive rows by status (empty status = all).
func (r *Repository) ListSettlements(status string) ([]models.SettlementRow, *RepositoryError) {
	var rows []models.SettlementRow
	q := r.db
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("settlement_id").Find(&rows).Error; err != nil {
		return nil, &RepositoryError{
			Code:    "DATABASE_ERROR",
			Message: "Database error",
			Detail:  err.Error(),
		}
	}
	return rows, nil
}
