package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/platinummonkey/roster/pkg/auth"
)

// ErrMemberNotFound is returned when no directory row matches
var ErrMemberNotFound = errors.New("member not found")

// ErrDuplicateMember is returned when an insert violates a unique constraint
var ErrDuplicateMember = errors.New("member already exists")

// uniqueViolation is the Postgres SQLSTATE for unique_violation
const uniqueViolation = "23505"

var columns = []string{
	"member_id", "roll_no", "name", "email", "year", "hostel",
	"discord_id", "track", "github_user", "role", "created_at", "updated_at",
}

// Columns returns the member column list, each prefixed with alias when set
func Columns(alias string) string {
	if alias == "" {
		return strings.Join(columns, ", ")
	}
	qualified := make([]string, len(columns))
	for i, c := range columns {
		qualified[i] = alias + "." + c
	}
	return strings.Join(qualified, ", ")
}

// RowScanner is satisfied by *sql.Row and *sql.Rows
type RowScanner interface {
	Scan(dest ...any) error
}

// Scan reads one member in Columns order
func Scan(row RowScanner) (*auth.Member, error) {
	m := &auth.Member{}
	err := row.Scan(
		&m.ID, &m.RollNo, &m.Name, &m.Email, &m.Year, &m.Hostel,
		&m.DiscordID, &m.Track, &m.GitHubUser, &m.Role, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID retrieves a member by id
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*auth.Member, error) {
	query := `SELECT ` + Columns("") + ` FROM members WHERE member_id = $1`
	m, err := Scan(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// GetByGitHubUser retrieves a member by GitHub username
func (r *PostgresRepository) GetByGitHubUser(ctx context.Context, username string) (*auth.Member, error) {
	query := `SELECT ` + Columns("") + ` FROM members WHERE github_user = $1`
	m, err := Scan(r.db.QueryRowContext(ctx, query, username))
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member by github user: %w", err)
	}
	return m, nil
}

// Create inserts a member and fills in its id and timestamps
func (r *PostgresRepository) Create(ctx context.Context, m *auth.Member) error {
	query := `
		INSERT INTO members (name, email, github_user, role)
		VALUES ($1, $2, $3, $4)
		RETURNING member_id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, m.Name, m.Email, m.GitHubUser, m.Role).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateMember, pqErr.Constraint)
		}
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}
