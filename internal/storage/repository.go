package storage

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Users

func (r *Repository) CreateUser(user *User) error {
	return r.db.Create(user).Error
}

// GetUserByUsername returns (nil, nil) when no such user exists.
func (r *Repository) GetUserByUsername(username string) (*User, error) {
	var user User
	err := r.db.Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) GetUserByID(id string) (*User, error) {
	var user User
	err := r.db.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Positions

// GetPosition is a point lookup on the identity key; it returns (nil, nil)
// when the position does not exist.
func (r *Repository) GetPosition(ownerID, symbol string, class AssetClass) (*Position, error) {
	var pos Position
	err := r.db.Where("owner_id = ? AND symbol = ? AND asset_class = ?", ownerID, symbol, class).
		First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// UpsertPosition inserts or overwrites the single row for the position's
// identity key, so duplicates cannot appear under concurrent writers.
func (r *Repository) UpsertPosition(pos *Position) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_id"}, {Name: "symbol"}, {Name: "asset_class"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"quantity", "average_cost", "updated_at",
		}),
	}).Create(pos).Error
}

// DeletePosition removes the row if present; deleting a missing position
// is a no-op.
func (r *Repository) DeletePosition(ownerID, symbol string, class AssetClass) error {
	return r.db.Where("owner_id = ? AND symbol = ? AND asset_class = ?", ownerID, symbol, class).
		Delete(&Position{}).Error
}

// ListPositions returns an owner's positions in insertion order.
func (r *Repository) ListPositions(ownerID string) ([]Position, error) {
	var positions []Position
	err := r.db.Where("owner_id = ?", ownerID).Order("id ASC").Find(&positions).Error
	return positions, err
}

// ListOwnerIDs returns every owner that currently holds at least one position.
func (r *Repository) ListOwnerIDs() ([]string, error) {
	var owners []string
	err := r.db.Model(&Position{}).Distinct().Pluck("owner_id", &owners).Error
	return owners, err
}

// Transactions (append-only)

func (r *Repository) SaveTransaction(tx *Transaction) error {
	return r.db.Create(tx).Error
}

func (r *Repository) ListTransactions(ownerID string) ([]Transaction, error) {
	var txs []Transaction
	err := r.db.Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").Find(&txs).Error
	return txs, err
}

// Snapshots

func (r *Repository) SaveSnapshot(snapshot *PortfolioSnapshot) error {
	return r.db.Create(snapshot).Error
}

func (r *Repository) ListSnapshots(ownerID string, limit int) ([]PortfolioSnapshot, error) {
	var snapshots []PortfolioSnapshot
	q := r.db.Where("owner_id = ?", ownerID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&snapshots).Error
	return snapshots, err
}
