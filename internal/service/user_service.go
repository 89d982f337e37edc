package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AdamBeresnev/op-tournament/internal/middleware"
	"github.com/AdamBeresnev/op-tournament/internal/store"
	users "github.com/AdamBeresnev/op-tournament/internal/user"
	"github.com/AdamBeresnev/op-tournament/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth"
)

type UserService struct {
	db    *sqlx.DB
	store *store.UserStore
}

func NewUserService(db *sqlx.DB, store *store.UserStore) *UserService {
	return &UserService{db: db, store: store}
}

// providerIdentity is the part of a completed OAuth login the user row keeps.
type providerIdentity struct {
	Provider   string `validate:"required,oneof=slack"`
	ProviderID string `validate:"required"`
	Username   string `validate:"required,max=50"`
	Email      string `validate:"omitempty,email"`
	AvatarURL  string `validate:"omitempty,url"`
}

func identityOf(gothUser goth.User) providerIdentity {
	username := gothUser.NickName
	if username == "" {
		username = gothUser.Name
	}
	return providerIdentity{
		Provider:   gothUser.Provider,
		ProviderID: gothUser.UserID,
		Username:   username,
		Email:      gothUser.Email,
		AvatarURL:  gothUser.AvatarURL,
	}
}

// FindOrCreateUserByProvider maps a login completed by gothic to a user row,
// refreshing the name and avatar the provider reports.
func (s *UserService) FindOrCreateUserByProvider(ctx context.Context, gothUser goth.User) (*users.User, error) {
	identity := identityOf(gothUser)
	if err := validateInput(identity); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByProvider(ctx, identity.Provider, identity.ProviderID)
	if err == nil {
		if utils.OrZero(user.AvatarURL) != identity.AvatarURL || user.Username != identity.Username {
			user.AvatarURL = utils.StringOrNil(identity.AvatarURL)
			user.Username = identity.Username
			if err := s.store.UpdateUserNameAndAvatar(ctx, user); err != nil {
				return nil, storageErr("failed to update user", err, nil)
			}
		}
		return user, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		newUser := &users.User{
			ID:         uuid.New(),
			Email:      identity.Email,
			Username:   identity.Username,
			Provider:   &identity.Provider,
			ProviderID: &identity.ProviderID,
			AvatarURL:  utils.StringOrNil(identity.AvatarURL),
		}
		if err := s.store.CreateUser(ctx, newUser); err != nil {
			return nil, storageErr("failed to create user", err, nil)
		}
		return newUser, nil
	}

	return nil, storageErr("failed to get user", err, nil)
}

func (s *UserService) EnsureGuestUser(ctx context.Context) (*users.User, error) {
	guestID := uuid.MustParse(middleware.SuperUserID)
	user, err := s.store.GetUser(ctx, guestID)
	if err == nil {
		return user, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		guestUser := &users.User{
			ID:       guestID,
			Email:    "guest@op-tournament.app",
			Username: "Guest User",
		}
		err := s.store.CreateUser(ctx, guestUser)
		return guestUser, err
	}
	return nil, err
}
