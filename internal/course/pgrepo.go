package course

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository is a Repository backed by the relational course table
// (§3 Non-goals: the relational data model itself is external, but a
// concrete reader is needed to exercise C2/C6 against something).
// Uses the same jackc/pgx/v5 pool as chat.PGVectorStore.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository builds a PGRepository reading from a `courses` table
// with columns matching Course's fields.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const courseColumns = "id, title, medical_department, difficulty_level, applicable_title, status, sale_status, created_time"

func (r *PGRepository) Get(id string) (Course, bool, error) {
	row := r.pool.QueryRow(context.Background(),
		"SELECT "+courseColumns+" FROM courses WHERE id = $1", id)
	var c Course
	if err := row.Scan(&c.ID, &c.Title, &c.MedicalDepartment, &c.DifficultyLevel, &c.ApplicableTitle, &c.Status, &c.SaleStatus, &c.CreatedTime); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Course{}, false, nil
		}
		return Course{}, false, err
	}
	return c, true, nil
}

func (r *PGRepository) All() ([]Course, error) {
	rows, err := r.pool.Query(context.Background(), "SELECT "+courseColumns+" FROM courses")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.MedicalDepartment, &c.DifficultyLevel, &c.ApplicableTitle, &c.Status, &c.SaleStatus, &c.CreatedTime); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
