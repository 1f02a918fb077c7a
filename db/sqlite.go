package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const defaultHistoryLimit = 50

// Prediction is one served inference, as recorded in the history table.
type Prediction struct {
	ID              int64     `json:"id"`
	ProductCategory string    `json:"product_category"`
	AmountLoan      float64   `json:"amount_loan"`
	InvestorID      int       `json:"investor_id"`
	TotalAmount     float64   `json:"total_amount"`
	Probability     float64   `json:"probability"`
	ModelType       string    `json:"model_type"`
	CreatedAt       time.Time `json:"created_at"`
}

type Store struct {
	database *sql.DB
}

// Open initializes the SQLite database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path required")
	}
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        product_category TEXT NOT NULL,
        amount_loan REAL NOT NULL,
        investor_id INTEGER NOT NULL,
        total_amount REAL NOT NULL,
        probability REAL NOT NULL,
        model_type TEXT NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions (created_at);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, err
	}
	return &Store{database: database}, nil
}

func (s *Store) Close() error {
	return s.database.Close()
}

// SavePrediction stores p and returns its row id. A zero CreatedAt is set to
// the current time.
func (s *Store) SavePrediction(ctx context.Context, p Prediction) (int64, error) {
	if s == nil || s.database == nil {
		return 0, errors.New("database not initialized")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := s.database.ExecContext(ctx, `
        INSERT INTO predictions (
            product_category, amount_loan, investor_id, total_amount, probability, model_type, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ProductCategory, p.AmountLoan, p.InvestorID, p.TotalAmount, p.Probability, p.ModelType, p.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentPredictions returns up to limit rows, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]Prediction, error) {
	if s == nil || s.database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := s.database.QueryContext(ctx, `
        SELECT id, product_category, amount_loan, investor_id, total_amount, probability, model_type, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]Prediction, 0)
	for rows.Next() {
		var p Prediction
		if err := rows.Scan(&p.ID, &p.ProductCategory, &p.AmountLoan, &p.InvestorID, &p.TotalAmount,
			&p.Probability, &p.ModelType, &p.CreatedAt); err != nil {
			return nil, err
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}
