// internal/db/users.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"

	"github.com/pviana/arenabook/internal/models"
)

// defaultPhoneRegion is used when a stored phone number has no country
// prefix.
const defaultPhoneRegion = "BR"

type CreateUserParams struct {
	Email      string
	FullName   string
	Phone      string
	Occupation models.Occupation
	Active     bool
	Admin      bool
	Internal   bool
}

func (q *Queries) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	phone, err := normalizePhone(params.Phone)
	if err != nil {
		return models.User{}, fmt.Errorf("normalize phone: %w", err)
	}

	user := models.User{
		ID:         uuid.New(),
		Email:      params.Email,
		FullName:   params.FullName,
		Phone:      phone,
		Occupation: params.Occupation,
		Active:     params.Active,
		Admin:      params.Admin,
		Internal:   params.Internal,
	}
	if user.Occupation == "" {
		user.Occupation = models.OccupationStudent
	}

	_, err = q.db.ExecContext(ctx,
		`INSERT INTO users (id, email, full_name, phone, occupation, is_active, is_admin, is_internal)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID.String(), user.Email, user.FullName, user.Phone, string(user.Occupation),
		user.Active, user.Admin, user.Internal,
	)
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	row := q.db.QueryRowContext(ctx, userSelectColumns+` WHERE id = ?`, id.String())
	return scanUser(row)
}

// GetUsersByIDs returns the users found among ids. Unknown ids are
// simply absent from the result, never an error.
func (q *Queries) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}

	rows, err := q.db.QueryContext(ctx,
		userSelectColumns+` WHERE id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("list users by ids: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (q *Queries) SetWeeklyParticipation(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET last_weekly_participation = ? WHERE id = ?`,
		formatTime(at), id.String(),
	)
	if err != nil {
		return fmt.Errorf("set weekly participation: %w", err)
	}
	return nil
}

func (q *Queries) SetMonthlyParticipation(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET last_monthly_participation = ? WHERE id = ?`,
		formatTime(at), id.String(),
	)
	if err != nil {
		return fmt.Errorf("set monthly participation: %w", err)
	}
	return nil
}

const userSelectColumns = `SELECT id, email, full_name, phone, occupation, is_active, is_admin, is_internal,
	last_weekly_participation, last_monthly_participation FROM users`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var user models.User
	var id, occupation string
	var lastWeekly, lastMonthly sql.NullString

	err := row.Scan(&id, &user.Email, &user.FullName, &user.Phone, &occupation,
		&user.Active, &user.Admin, &user.Internal, &lastWeekly, &lastMonthly)
	if err != nil {
		return models.User{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return models.User{}, fmt.Errorf("parse user id: %w", err)
	}
	user.ID = parsed
	user.Occupation = models.Occupation(occupation)

	if user.LastWeeklyParticipation, err = parseNullableTime(lastWeekly); err != nil {
		return models.User{}, fmt.Errorf("parse weekly participation: %w", err)
	}
	if user.LastMonthlyParticipation, err = parseNullableTime(lastMonthly); err != nil {
		return models.User{}, fmt.Errorf("parse monthly participation: %w", err)
	}
	return user, nil
}

// normalizePhone stores phone numbers in E.164 so notification lookups
// are unambiguous. An empty phone is allowed.
func normalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	parsed, err := phonenumbers.Parse(trimmed, defaultPhoneRegion)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("invalid phone number: %s", trimmed)
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
