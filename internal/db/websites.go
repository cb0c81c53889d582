package db

import (
	"database/sql"
	"time"

	"github.com/scriptgate/scriptgate/internal/models"
)

// CreateWebsite inserts a new website record.
func CreateWebsite(q Querier, w *models.Website) error {
	if w.CreatedAt == 0 {
		w.CreatedAt = time.Now().Unix()
	}
	_, err := q.Exec(
		"INSERT INTO websites (id, name, url, status, created_at) VALUES (?, ?, ?, ?, ?)",
		w.ID, w.Name, w.URL, w.Status, w.CreatedAt,
	)
	return err
}

// GetWebsite retrieves a website by ID. Returns nil if not found.
func GetWebsite(q Querier, id string) (*models.Website, error) {
	row := q.QueryRow(
		"SELECT id, name, url, status, created_at FROM websites WHERE id = ?",
		id,
	)
	var w models.Website
	err := row.Scan(&w.ID, &w.Name, &w.URL, &w.Status, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWebsites returns all websites ordered by creation time.
func ListWebsites(q Querier) ([]models.Website, error) {
	rows, err := q.Query(
		"SELECT id, name, url, status, created_at FROM websites ORDER BY created_at, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var websites []models.Website
	for rows.Next() {
		var w models.Website
		if err := rows.Scan(&w.ID, &w.Name, &w.URL, &w.Status, &w.CreatedAt); err != nil {
			return nil, err
		}
		websites = append(websites, w)
	}
	return websites, rows.Err()
}
