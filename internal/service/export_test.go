package service

import (
	"context"

	"github.com/iliyamo/farm-marketplace/internal/repository"
)

// SetBeforeLinkHook installs fn to run inside the linking transaction
// right before the multi account insert.
func (s *AccountService) SetBeforeLinkHook(fn func(ctx context.Context, tx *repository.Store, email string) error) {
	s.beforeLink = fn
}
