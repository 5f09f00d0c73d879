package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/larderhq/larder/internal/model"
)

type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

func scanPantryItem(scanner interface{ Scan(...any) error }) (*model.Item, error) {
	var item model.Item
	var restockThreshold sql.NullInt64
	var barcode sql.NullString

	err := scanner.Scan(
		&item.ID, &item.PublicID, &item.UserID, &item.Name, &item.Category,
		&item.Quantity, &item.AddedOn, &item.Expiry, &restockThreshold,
		&barcode, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if restockThreshold.Valid {
		v := int(restockThreshold.Int64)
		item.RestockThreshold = &v
	}
	if barcode.Valid {
		item.Barcode = &barcode.String
	}
	return &item, nil
}

const itemCols = `id, public_id, user_id, name, category, quantity, added_on, expiry, restock_threshold, barcode, created_at, updated_at`

// Create inserts an item with a fresh public ID. Field validation lives in
// the handlers; the store writes what it is given.
func (s *ItemStore) Create(userID int64, name, category string, quantity int, addedOn, expiry string, restockThreshold *int, barcode *string) (*model.Item, error) {
	publicID := uuid.NewString()

	var threshold sql.NullInt64
	if restockThreshold != nil {
		threshold = sql.NullInt64{Int64: int64(*restockThreshold), Valid: true}
	}
	var code sql.NullString
	if barcode != nil {
		code = sql.NullString{String: *barcode, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO items (public_id, user_id, name, category, quantity, added_on, expiry, restock_threshold, barcode)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		publicID, userID, name, category, quantity, addedOn, expiry, threshold, code,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ?`, id)
	return scanPantryItem(row)
}

// GetByPublicID returns the user's item with the given public ID, or nil if
// it does not exist or belongs to someone else.
func (s *ItemStore) GetByPublicID(userID int64, publicID string) (*model.Item, error) {
	row := s.db.QueryRow(
		`SELECT `+itemCols+` FROM items WHERE public_id = ? AND user_id = ?`,
		publicID, userID,
	)
	item, err := scanPantryItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListByUser returns the user's items in insertion order.
func (s *ItemStore) ListByUser(userID int64) ([]model.Item, error) {
	rows, err := s.db.Query(
		`SELECT `+itemCols+` FROM items WHERE user_id = ? ORDER BY id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanPantryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *ItemStore) Update(userID int64, publicID, name, category string, quantity int, addedOn, expiry string, restockThreshold *int, barcode *string) (*model.Item, error) {
	var threshold sql.NullInt64
	if restockThreshold != nil {
		threshold = sql.NullInt64{Int64: int64(*restockThreshold), Valid: true}
	}
	var code sql.NullString
	if barcode != nil {
		code = sql.NullString{String: *barcode, Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE items SET name = ?, category = ?, quantity = ?, added_on = ?, expiry = ?, restock_threshold = ?, barcode = ?, updated_at = datetime('now')
		 WHERE public_id = ? AND user_id = ?`,
		name, category, quantity, addedOn, expiry, threshold, code, publicID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return s.GetByPublicID(userID, publicID)
}

func (s *ItemStore) Delete(userID int64, publicID string) error {
	_, err := s.db.Exec(`DELETE FROM items WHERE public_id = ? AND user_id = ?`, publicID, userID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (s *ItemStore) CountByUser(userID int64) (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM items WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return count, nil
}
