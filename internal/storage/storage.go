package storage

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

var (
	ErrOrgNotFound           = errors.New("organization not found")
	ErrSlugTaken             = errors.New("organization slug already taken")
	ErrDepartmentNotFound    = errors.New("department not found")
	ErrMemberNotFound        = errors.New("organization member not found")
	ErrDuplicateMember       = errors.New("user is already an active member of this organization")
	ErrLastAdmin             = errors.New("organization must retain at least one active admin")
	ErrInviteNotFound        = errors.New("invite not found")
	ErrInviteExpired         = errors.New("invite expired")
	ErrInviteAlreadyAccepted = errors.New("invite already accepted")
	ErrUserNotFound          = errors.New("user not found")
)

type Storage struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func New(db *sqlx.DB, logger *zap.Logger) *Storage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{db: db, logger: logger}
}

func (s *Storage) Ping() error {
	return s.db.Ping()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
