package repository

import (
	"errors"

	"github.com/okian/hookscore/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound          = model.ErrNotFound
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrInvalidLimit      = errors.New("invalid limit")
	ErrMigrate           = errors.New("migration failed")
)
