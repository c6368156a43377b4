package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"pixelfeed/internal/apperrors"
	"pixelfeed/internal/models"
	"pixelfeed/internal/repositories"
)

// IdentityResolver maps a provider-asserted identity onto a local user,
// creating one when neither the external id nor the email is known.
type IdentityResolver struct {
	users repositories.UserRepository
	log   *logrus.Logger
}

// NewIdentityResolver creates a new IdentityResolver.
func NewIdentityResolver(users repositories.UserRepository, log *logrus.Logger) *IdentityResolver {
	return &IdentityResolver{users: users, log: log}
}

// ResolveOrCreate resolves ident to a user. Precedence: an exact external-id
// match is returned unchanged; an email match is linked to the external id
// unless it already carries a different one; otherwise a fresh user is
// created with a username derived from the email.
func (r *IdentityResolver) ResolveOrCreate(ident *GoogleIdentity) (*models.User, error) {
	user, err := r.users.GetByGoogleID(ident.ExternalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.Wrap(apperrors.Internal, "failed to look up linked account", err)
	}

	user, err = r.users.GetByEmail(ident.Email)
	if err == nil {
		return r.linkAccount(user, ident)
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.Wrap(apperrors.Internal, "failed to look up account by email", err)
	}

	return r.createAccount(ident)
}

// linkAccount attaches the external id to an existing user found by email.
// The stored full name is only backfilled when empty; an existing name is
// never overwritten by the provider's current one.
func (r *IdentityResolver) linkAccount(user *models.User, ident *GoogleIdentity) (*models.User, error) {
	if user.GoogleID != nil && *user.GoogleID != ident.ExternalID {
		return nil, apperrors.New(apperrors.Conflict, "email is already linked to a different google account")
	}

	externalID := ident.ExternalID
	user.GoogleID = &externalID
	if user.FullName == "" {
		user.FullName = ident.FullName
	}
	if err := r.users.Update(user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.New(apperrors.Conflict, "google account is already linked to another user")
		}
		return nil, apperrors.Wrap(apperrors.Internal, "failed to link google account", err)
	}

	r.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("linked google account")
	return user, nil
}

func (r *IdentityResolver) createAccount(ident *GoogleIdentity) (*models.User, error) {
	username, err := r.availableUsername(ident.Email)
	if err != nil {
		return nil, err
	}

	externalID := ident.ExternalID
	user := &models.User{
		FullName: ident.FullName,
		Username: username,
		Email:    ident.Email,
		GoogleID: &externalID,
	}
	if err := r.users.Create(user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.New(apperrors.Conflict, "account already exists")
		}
		return nil, apperrors.Wrap(apperrors.Internal, "failed to create account", err)
	}

	r.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("created user from google sign-in")
	return user, nil
}

// usernameBase derives a username candidate from the local part of an email:
// lowercased, stripped to [a-z0-9], with "user" as the last resort.
func usernameBase(email string) string {
	local := email
	if i := strings.IndexByte(email, '@'); i >= 0 {
		local = email[:i]
	}

	var b strings.Builder
	for _, c := range strings.ToLower(local) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}

// availableUsername disambiguates the base with an increasing integer suffix
// until no existing user has the candidate.
func (r *IdentityResolver) availableUsername(email string) (string, error) {
	base := usernameBase(email)
	candidate := base
	for suffix := 1; ; suffix++ {
		_, err := r.users.GetByUsername(candidate)
		if errors.Is(err, repositories.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", apperrors.Wrap(apperrors.Internal, "failed to check username availability", err)
		}
		candidate = fmt.Sprintf("%s%d", base, suffix)
	}
}
