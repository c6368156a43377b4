package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"pixelfeed/internal/apperrors"
	"pixelfeed/internal/models"
	"pixelfeed/internal/repositories"
)

// AuthService orchestrates signup, login, Google sign-in, session lookup and
// profile updates.
type AuthService struct {
	users    repositories.UserRepository
	hasher   PasswordHasher
	tokens   *TokenService
	google   GoogleVerifier
	resolver *IdentityResolver
	events   EventPublisher
	log      *logrus.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users repositories.UserRepository,
	tokens *TokenService,
	google GoogleVerifier,
	resolver *IdentityResolver,
	events EventPublisher,
	log *logrus.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		google:   google,
		resolver: resolver,
		events:   events,
		log:      log,
	}
}

// SignupInput carries the fields of a signup request.
type SignupInput struct {
	FullName string
	Username string
	Email    string
	Password string
	Bio      string
}

// ProfileUpdate carries a partial profile update. Nil fields are left
// untouched; non-nil fields are applied, empty strings included.
type ProfileUpdate struct {
	FullName *string `json:"full_name"`
	Username *string `json:"username" validate:"omitempty,min=3,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Bio      *string `json:"bio"`
}

func errInvalidCredentials() error {
	return apperrors.New(apperrors.Authentication, "incorrect username or password")
}

func errUnauthenticated() error {
	return apperrors.New(apperrors.Authentication, "could not validate credentials")
}

// Signup registers a new user with a hashed password. No session is issued.
func (s *AuthService) Signup(in SignupInput) (*models.User, error) {
	if _, err := s.users.GetByUsername(in.Username); err == nil {
		return nil, apperrors.New(apperrors.Conflict, "username already registered")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.Wrap(apperrors.Internal, "failed to check username", err)
	}

	if _, err := s.users.GetByEmail(in.Email); err == nil {
		return nil, apperrors.New(apperrors.Conflict, "email already registered")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.Wrap(apperrors.Internal, "failed to check email", err)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "failed to hash password", err)
	}

	user := &models.User{
		FullName: in.FullName,
		Username: in.Username,
		Email:    in.Email,
		Password: digest,
		Bio:      in.Bio,
	}
	if err := s.users.Create(user); err != nil {
		// Lost the check-then-insert race; the unique constraint is the
		// real enforcement point.
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.New(apperrors.Conflict, "username or email already registered")
		}
		return nil, apperrors.Wrap(apperrors.Internal, "failed to create user", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	publishEvent(s.events, s.log, EventUserRegistered, map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
	})
	return user, nil
}

// Login authenticates by username and password and issues a session token.
// A missing user and a wrong password produce the same failure.
func (s *AuthService) Login(username, password string) (string, error) {
	user, err := s.users.GetByUsername(username)
	if errors.Is(err, repositories.ErrNotFound) {
		return "", errInvalidCredentials()
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.Internal, "failed to look up user", err)
	}

	if user.Password == "" || !s.hasher.Verify(password, user.Password) {
		return "", errInvalidCredentials()
	}

	token, err := s.tokens.IssueDefault(user.Username)
	if err != nil {
		return "", apperrors.Wrap(apperrors.Internal, "failed to issue token", err)
	}
	return token, nil
}

// GoogleLogin verifies a Google credential, resolves it to a local user and
// issues a session token exactly like Login.
func (s *AuthService) GoogleLogin(ctx context.Context, credential string) (string, error) {
	ident, err := s.google.Verify(ctx, credential)
	if err != nil {
		return "", err
	}

	user, err := s.resolver.ResolveOrCreate(ident)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.IssueDefault(user.Username)
	if err != nil {
		return "", apperrors.Wrap(apperrors.Internal, "failed to issue token", err)
	}
	return token, nil
}

// CurrentUser loads the user behind an already-validated token subject. A
// user deleted after token issuance fails the same way as a bad token.
func (s *AuthService) CurrentUser(username string) (*models.User, error) {
	user, err := s.users.GetByUsername(username)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, errUnauthenticated()
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "failed to look up user", err)
	}
	return user, nil
}

// WhoAmI validates a session token and returns its user.
func (s *AuthService) WhoAmI(token string) (*models.User, error) {
	subject, err := s.tokens.Validate(token)
	if err != nil {
		return nil, errUnauthenticated()
	}
	return s.CurrentUser(subject)
}

// UpdateProfile applies a partial update to user. Username and email changes
// re-check uniqueness excluding the user's own row.
func (s *AuthService) UpdateProfile(user *models.User, upd ProfileUpdate) (*models.User, error) {
	if upd.Username != nil && *upd.Username != user.Username {
		taken, err := s.users.UsernameExists(*upd.Username, user.ID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.Internal, "failed to check username", err)
		}
		if taken {
			return nil, apperrors.New(apperrors.Conflict, "username already taken")
		}
		user.Username = *upd.Username
	}

	if upd.Email != nil && *upd.Email != user.Email {
		taken, err := s.users.EmailExists(*upd.Email, user.ID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.Internal, "failed to check email", err)
		}
		if taken {
			return nil, apperrors.New(apperrors.Conflict, "email already taken")
		}
		user.Email = *upd.Email
	}

	if upd.FullName != nil {
		user.FullName = *upd.FullName
	}
	if upd.Bio != nil {
		user.Bio = *upd.Bio
	}

	if err := s.users.Update(user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.New(apperrors.Conflict, "username or email already taken")
		}
		return nil, apperrors.Wrap(apperrors.Internal, "failed to update profile", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("profile updated")
	return user, nil
}
