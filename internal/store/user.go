package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"folio/internal/models"
	"folio/internal/query"
)

// UserStore handles all user-related database operations.
type UserStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewUserStore creates a new UserStore with the given database connection.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db, sb: builder()}
}

var userColumns = []string{
	"id", "email", "password_hash", "name", "totp_secret", "totp_enabled", "created_at", "updated_at",
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name,
		&u.TOTPSecret, &u.TOTPEnabled, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) findOne(ctx context.Context, where sq.Eq, op string) (*models.User, error) {
	sqlStr, args, err := s.sb.Select(userColumns...).From("users").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", op, err)
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// FindByEmail retrieves a user by their email address. Returns nil if not found.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, sq.Eq{"email": email}, "find user by email")
}

// FindByID retrieves a user by their UUID. Returns nil if not found.
func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.findOne(ctx, sq.Eq{"id": id}, "find user by id")
}

// List returns one page of users matching q and the total match count.
func (s *UserStore) List(ctx context.Context, q *query.Query) ([]models.User, int, error) {
	countB, err := q.ApplyCount(s.sb.Select("COUNT(*)").From("users"))
	if err != nil {
		return nil, 0, err
	}
	countSQL, countArgs, err := countB.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count users: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	if total == 0 {
		return []models.User{}, 0, nil
	}

	listB, err := q.Apply(s.sb.Select(userColumns...).From("users"))
	if err != nil {
		return nil, 0, err
	}
	listSQL, args, err := listB.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list users: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// Create inserts a new user with a bcrypt-hashed password.
func (s *UserStore) Create(ctx context.Context, email, password, name string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	sqlStr, args, err := s.sb.Insert("users").
		Columns("email", "password_hash", "name").
		Values(email, string(hash), name).
		Suffix("RETURNING id, email, password_hash, name, totp_secret, totp_enabled, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build create user: %w", err)
	}

	u, err := scanUser(s.db.QueryRowContext(ctx, sqlStr, args...))
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Update saves a user's email and name. When password is non-empty the
// stored hash is replaced as well.
func (s *UserStore) Update(ctx context.Context, u *models.User, password string) error {
	b := s.sb.Update("users").
		Set("email", u.Email).
		Set("name", u.Name).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": u.ID})

	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
		b = b.Set("password_hash", u.PasswordHash)
	}

	sqlStr, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build update user: %w", err)
	}
	_, err = s.db.ExecContext(ctx, sqlStr, args...)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// SetTOTPSecret saves the TOTP secret for a user (during 2FA setup).
func (s *UserStore) SetTOTPSecret(ctx context.Context, userID uuid.UUID, secret string) error {
	return s.exec(ctx, "set totp secret", s.sb.Update("users").
		Set("totp_secret", secret).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": userID}))
}

// EnableTOTP marks 2FA as active for a user (after successful code verification).
func (s *UserStore) EnableTOTP(ctx context.Context, userID uuid.UUID) error {
	return s.exec(ctx, "enable totp", s.sb.Update("users").
		Set("totp_enabled", true).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": userID}))
}

// ResetTOTP clears the TOTP secret and disables 2FA for a user.
func (s *UserStore) ResetTOTP(ctx context.Context, userID uuid.UUID) error {
	return s.exec(ctx, "reset totp", s.sb.Update("users").
		Set("totp_secret", nil).
		Set("totp_enabled", false).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": userID}))
}

// Delete removes a user by ID.
func (s *UserStore) Delete(ctx context.Context, userID uuid.UUID) error {
	return s.exec(ctx, "delete user", s.sb.Delete("users").Where(sq.Eq{"id": userID}))
}

// CheckPassword verifies a plaintext password against the user's stored hash.
func (s *UserStore) CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (s *UserStore) exec(ctx context.Context, op string, b sq.Sqlizer) error {
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
