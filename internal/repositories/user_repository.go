package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/gridvolt/auth-service/internal/models"
)

// UserRepository is the credential store consumed by the session engine:
// lookup by login identifier, role membership, and the save path for
// password changes. Asset ownership, profile data, and the rest of the user
// graph live in other services.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByIdentifier resolves a login identifier against username, email,
	// and phone number in that order; first match wins. Returns nil, nil
	// on a miss.
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)

	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error
}

type userRepository struct {
	db DB
}

func NewUserRepository(db DB) UserRepository {
	return &userRepository{db: db}
}

const baseSelectUser = `
	SELECT id, username, email, phone_number, password_hash, created_at
	FROM users
`

func (r *userRepository) Create(ctx context.Context, u *models.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, username, email, phone_number, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, u.ID, u.Username, u.Email, u.PhoneNumber, u.PasswordHash)
	if err != nil {
		return err
	}
	for _, role := range u.Roles {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
		`, u.ID, role.String()); err != nil {
			return err
		}
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := r.db.QueryRow(ctx, baseSelectUser+` WHERE id = $1`, id)
	return r.scanUserWithRoles(ctx, row)
}

func (r *userRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	row := r.db.QueryRow(ctx, baseSelectUser+`
		WHERE username = $1 OR email = $1 OR phone_number = $1
		ORDER BY CASE
			WHEN username = $1 THEN 0
			WHEN email = $1 THEN 1
			ELSE 2
		END
		LIMIT 1
	`, identifier)
	return r.scanUserWithRoles(ctx, row)
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2 WHERE id = $1
	`, id, passwordHash)
	return err
}

func (r *userRepository) scanUserWithRoles(ctx context.Context, row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PhoneNumber,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, u.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var roleStr string
		if err := rows.Scan(&roleStr); err != nil {
			return nil, err
		}
		role, parseErr := models.ParseRole(roleStr)
		if parseErr != nil {
			// Unknown role rows are skipped rather than failing the whole
			// lookup; they cannot be logged into anyway.
			continue
		}
		u.Roles = append(u.Roles, role)
	}
	return &u, rows.Err()
}
