package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/logging"
	"github.com/dmitrijs2005/objcatalog/internal/server/auth"
	"github.com/dmitrijs2005/objcatalog/internal/server/metrics"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/repomanager"
)

// UserService keeps local users in step with the identities presented by
// the identity provider.
type UserService struct {
	db          DB
	repomanager repomanager.RepositoryManager
	jwtSecret   []byte
	logger      logging.Logger
}

func NewUserService(db DB, m repomanager.RepositoryManager, jwtSecret []byte, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		jwtSecret:   jwtSecret,
		logger:      logger.With("module", "users"),
	}
}

// Login maps claims to a local user. An unknown identity is created; a known
// one is patched with the fields that differ, and left untouched when none
// do.
func (s *UserService) Login(ctx context.Context, claims models.IdentityClaims) (*models.User, error) {
	if claims.IdentityID == "" {
		return nil, common.NewValidationError("login", "identity id", "required")
	}

	user, err := s.repomanager.Users(s.db).GetByIdentityID(ctx, claims.IdentityID)
	switch {
	case isNotFound(err):
		user, err = s.CreateUser(ctx, nil, userFromClaims(claims), models.SystemPrincipal())
		if err != nil {
			metrics.LoginsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.LoginsTotal.WithLabelValues("created").Inc()
		return user, nil
	case err != nil:
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	patch := diffClaims(user, claims)
	if patch.Empty() {
		metrics.LoginsTotal.WithLabelValues("unchanged").Inc()
		return user, nil
	}
	user, err = s.UpdateUser(ctx, nil, user.UserID, patch, models.Principal{UserID: user.UserID})
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.LoginsTotal.WithLabelValues("updated").Inc()
	return user, nil
}

func userFromClaims(c models.IdentityClaims) *models.User {
	username := c.Username
	if username == "" {
		username = c.IdentityID
	}
	return &models.User{
		IdentityID: c.IdentityID,
		IDP:        c.IDP,
		Username:   username,
		FullName:   c.FullName,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Email:      c.Email,
		Active:     true,
	}
}

// diffClaims returns the fields whose claim value is set and differs from
// the stored one. Absent claims never clear stored values.
func diffClaims(u *models.User, c models.IdentityClaims) models.UserPatch {
	var p models.UserPatch
	pick := func(stored, claimed string) *string {
		if claimed == "" || claimed == stored {
			return nil
		}
		return &claimed
	}
	p.IDP = pick(u.IDP, c.IDP)
	p.Username = pick(u.Username, c.Username)
	p.FullName = pick(u.FullName, c.FullName)
	p.FirstName = pick(u.FirstName, c.FirstName)
	p.LastName = pick(u.LastName, c.LastName)
	p.Email = pick(u.Email, c.Email)
	return p
}

// ensureIdentityProvider registers idp on first sight.
func (s *UserService) ensureIdentityProvider(ctx context.Context, tx dbx.DBTX, idp, actorID string) error {
	repo := s.repomanager.IdentityProviders(tx)
	ok, err := repo.Exists(ctx, idp)
	if err != nil {
		return fmt.Errorf("error checking identity provider: %w", err)
	}
	if ok {
		return nil
	}
	if err := repo.Create(ctx, &models.IdentityProvider{IDP: idp, Active: true, CreatedBy: actorID}); err != nil {
		return fmt.Errorf("error creating identity provider: %w", err)
	}
	s.logger.Info(ctx, "identity provider registered", "idp", idp)
	return nil
}

// CreateUser inserts user, registering its identity provider first when it
// has one that is not known yet. A user without an idp, such as the system
// user, never touches the identity provider table.
func (s *UserService) CreateUser(ctx context.Context, tx dbx.DBTX, user *models.User, actor models.Principal) (*models.User, error) {
	if user.Username == "" {
		return nil, common.NewValidationError("create user", "username", "required")
	}
	if user.UserID == "" {
		user.UserID = newID()
	}
	user.CreatedBy = actor.ActorID()

	var out *models.User
	err := dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) (err error) {
		if user.IDP != "" {
			if err := s.ensureIdentityProvider(ctx, tx, user.IDP, actor.ActorID()); err != nil {
				return err
			}
		}
		out, err = s.repomanager.Users(tx).Create(ctx, user)
		if err != nil {
			return fmt.Errorf("error creating user: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "create user failed", "identity_id", user.IdentityID, "error", err)
		return nil, err
	}
	s.logger.Info(ctx, "user created", "user_id", out.UserID, "idp", out.IDP)
	return out, nil
}

// UpdateUser applies patch. A patch that changes nothing returns the stored
// user without writing.
func (s *UserService) UpdateUser(ctx context.Context, tx dbx.DBTX, userID string, patch models.UserPatch, actor models.Principal) (*models.User, error) {
	if patch.Empty() {
		return s.repomanager.Users(handle(s.db, tx)).Get(ctx, userID)
	}

	var out *models.User
	err := dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) (err error) {
		if patch.IDP != nil && *patch.IDP != "" {
			if err := s.ensureIdentityProvider(ctx, tx, *patch.IDP, actor.ActorID()); err != nil {
				return err
			}
		}
		out, err = s.repomanager.Users(tx).Update(ctx, userID, patch, actor.ActorID())
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "update user failed", "user_id", userID, "error", err)
		return nil, err
	}
	return out, nil
}

func (s *UserService) ReadUser(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).Get(ctx, userID)
}

func (s *UserService) SearchUsers(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	return s.repomanager.Users(s.db).Search(ctx, filter)
}

// TokenToUser resolves a bearer token to a local user id, creating the user
// on first sight of the identity.
func (s *UserService) TokenToUser(ctx context.Context, token string) (string, error) {
	claims, err := auth.ParseIdentity(token, s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}
	user, err := s.repomanager.Users(s.db).GetByIdentityID(ctx, claims.IdentityID)
	if isNotFound(err) {
		user, err = s.Login(ctx, *claims)
	}
	if err != nil {
		return "", err
	}
	if !user.Active {
		return "", fmt.Errorf("%w: user %s is inactive", common.ErrorUnauthorized, user.UserID)
	}
	return user.UserID, nil
}

// ResolvePrincipal returns the principal a request runs as. Without a token
// it is anonymous.
func (s *UserService) ResolvePrincipal(ctx context.Context, token string) (models.Principal, error) {
	if token == "" {
		return models.AnonymousPrincipal(), nil
	}
	userID, err := s.TokenToUser(ctx, token)
	if err != nil {
		return models.Principal{}, err
	}
	if userID == models.SystemUserID {
		return models.SystemPrincipal(), nil
	}
	return models.Principal{UserID: userID}, nil
}
