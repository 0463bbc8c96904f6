// internal/db/arenas.go
package db

import (
	"context"
	"fmt"

	"github.com/pviana/arenabook/internal/models"
)

type CreateArenaParams struct {
	Name        string
	Description string
	Capacity    int64
	Sport       models.SportCategory
}

func (q *Queries) CreateArena(ctx context.Context, params CreateArenaParams) (models.Arena, error) {
	if !params.Sport.Valid() {
		return models.Arena{}, fmt.Errorf("unknown sport category: %s", params.Sport)
	}

	result, err := q.db.ExecContext(ctx,
		`INSERT INTO arenas (name, description, capacity, sport) VALUES (?, ?, ?, ?)`,
		params.Name, params.Description, params.Capacity, string(params.Sport),
	)
	if err != nil {
		return models.Arena{}, fmt.Errorf("insert arena: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.Arena{}, fmt.Errorf("arena id: %w", err)
	}

	return models.Arena{
		ID:          id,
		Name:        params.Name,
		Description: params.Description,
		Capacity:    params.Capacity,
		Sport:       params.Sport,
	}, nil
}

func (q *Queries) GetArena(ctx context.Context, id int64) (models.Arena, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, name, description, capacity, sport FROM arenas WHERE id = ?`, id)

	var arena models.Arena
	var sport string
	if err := row.Scan(&arena.ID, &arena.Name, &arena.Description, &arena.Capacity, &sport); err != nil {
		return models.Arena{}, err
	}
	arena.Sport = models.SportCategory(sport)
	return arena, nil
}

func (q *Queries) ListArenas(ctx context.Context) ([]models.Arena, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, description, capacity, sport FROM arenas ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list arenas: %w", err)
	}
	defer rows.Close()

	var arenas []models.Arena
	for rows.Next() {
		var arena models.Arena
		var sport string
		if err := rows.Scan(&arena.ID, &arena.Name, &arena.Description, &arena.Capacity, &sport); err != nil {
			return nil, fmt.Errorf("scan arena: %w", err)
		}
		arena.Sport = models.SportCategory(sport)
		arenas = append(arenas, arena)
	}
	return arenas, rows.Err()
}
