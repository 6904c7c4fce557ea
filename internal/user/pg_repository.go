package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `
	id, name, email, role, phone, is_active,
	specialization, license_number, experience_years, consultation_fee,
	availability, rating_avg, rating_count, bio,
	created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var availability []byte

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Role,
		&u.Phone,
		&u.IsActive,
		&u.Specialization,
		&u.LicenseNumber,
		&u.ExperienceYears,
		&u.ConsultationFee,
		&availability,
		&u.Rating.Average,
		&u.Rating.Count,
		&u.Bio,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if len(availability) > 0 {
		if err := json.Unmarshal(availability, &u.Availability); err != nil {
			return nil, fmt.Errorf("decode availability template: %w", err)
		}
	}

	return &u, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND role = 'doctor' AND is_active
	`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *PgRepository) ListDoctors(ctx context.Context, filter DoctorFilter) ([]User, int, error) {
	where := []string{"role = 'doctor'", "is_active"}
	args := []any{}

	if filter.Specialization != "" {
		args = append(args, "%"+filter.Specialization+"%")
		where = append(where, fmt.Sprintf("specialization ILIKE $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR specialization ILIKE $%d)", len(args), len(args)))
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY rating_avg DESC, created_at DESC
		LIMIT $%d OFFSET $%d
	`, userColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

func (r *PgRepository) UpdateAvailability(ctx context.Context, doctorID uuid.UUID, template []DayAvailability) (*User, error) {
	encoded, err := json.Marshal(template)
	if err != nil {
		return nil, fmt.Errorf("encode availability template: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET availability = $2,
		    updated_at = now()
		WHERE id = $1 AND role = 'doctor' AND is_active
		RETURNING `+userColumns+`
	`, doctorID, encoded)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *PgRepository) UpdateRating(ctx context.Context, doctorID uuid.UUID, rating RatingAggregate) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET rating_avg = $2,
		    rating_count = $3,
		    updated_at = now()
		WHERE id = $1 AND role = 'doctor'
	`, doctorID, rating.Average, rating.Count)
	if err != nil {
		return fmt.Errorf("update doctor rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}
