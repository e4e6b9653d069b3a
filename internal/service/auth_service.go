package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"takas-go/internal/core/auth"
	"takas-go/internal/core/oauth"
	"takas-go/internal/core/security"
	"takas-go/internal/domain"
	"takas-go/pkg/utils"
)

// SessionStore refresh token 存储（Redis 实现见 auth.RefreshStore）
type SessionStore interface {
	Issue(ctx context.Context, userID string) (string, error)
	Rotate(ctx context.Context, token string) (userID, next string, err error)
	Revoke(ctx context.Context, token string) error
	RevokeUser(ctx context.Context, userID string) error
}

// Session 一次登录下发给浏览器的两枚 token
type Session struct {
	AccessToken  string
	RefreshToken string
	Identity     domain.Identity
}

type SignUpInput struct {
	Email       string `json:"email" form:"email"`
	Password    string `json:"password" form:"password"`
	DisplayName string `json:"displayName" form:"displayName"`
}

type UpdateUserInput struct {
	Email           *string       `json:"email" form:"email"`
	Password        *string       `json:"password" form:"password"`
	CurrentPassword string        `json:"currentPassword" form:"currentPassword"`
	Profile         *ProfileInput `json:"profile"`
}

type AuthService struct {
	users    domain.UserRepository
	tokens   *auth.JWTer
	sessions SessionStore
	provider oauth.Provider
	clean    *security.Sanitizer
	log      *zap.Logger
}

// NewAuthService provider 可为 nil（未配置第三方登录）
func NewAuthService(users domain.UserRepository, tokens *auth.JWTer, sessions SessionStore,
	provider oauth.Provider, clean *security.Sanitizer, l *zap.Logger) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		provider: provider,
		clean:    clean,
		log:      l.Named("auth"),
	}
}

func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	const op = "auth.sign_up"
	email, err := normalizeEmail(op, in.Email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(op, in.Password); err != nil {
		return nil, err
	}
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	if existing != nil {
		return nil, domain.E(domain.KindConflict, op, "email already registered")
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	u := &domain.User{ID: utils.NewID(), Email: email, PasswordHash: hash}
	name := in.DisplayName
	if err := applyProfile(op, s.clean, &u.Profile, &ProfileInput{DisplayName: &name}); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user signed up", zap.String("uid", u.ID))
	return s.issue(ctx, u)
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	const op = "auth.sign_in"
	u, err := s.verifyPassword(ctx, op, email, password)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u)
}

func (s *AuthService) verifyPassword(ctx context.Context, op, email, password string) (*domain.User, error) {
	bad := domain.E(domain.KindUnauthorized, op, "invalid email or password")
	addr, err := normalizeEmail(op, email)
	if err != nil {
		return nil, bad
	}
	u, err := s.users.FindByEmail(ctx, addr)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	if u == nil || !utils.CheckPassword(password, u.PasswordHash) {
		return nil, bad
	}
	return u, nil
}

// SignOut 吊销当前 refresh token 所在的族；token 为空视为已登出
func (s *AuthService) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, refreshToken); err != nil {
		return domain.Wrap(domain.KindUnavailable, "auth.sign_out", err)
	}
	return nil
}

// Authenticate 只校验 access token，不查库
func (s *AuthService) Authenticate(accessToken string) (*domain.Identity, error) {
	if accessToken == "" {
		return nil, domain.ErrUnauthorized
	}
	c, err := s.tokens.Parse(accessToken)
	if err != nil {
		return nil, domain.Wrap(domain.KindUnauthorized, "auth.authenticate", err)
	}
	return &domain.Identity{UserID: c.UserID(), Email: c.Email}, nil
}

// Refresh 轮换 refresh token 并换发 access token；已删除的用户不再续期
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	const op = "auth.refresh"
	if refreshToken == "" {
		return nil, domain.ErrUnauthorized
	}
	uid, next, err := s.sessions.Rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) || errors.Is(err, auth.ErrRefreshTokenReplay) {
			if errors.Is(err, auth.ErrRefreshTokenReplay) {
				s.log.Warn("refresh token replay", zap.String("uid", uid))
			}
			return nil, domain.Wrap(domain.KindUnauthorized, op, err)
		}
		return nil, domain.Wrap(domain.KindUnavailable, op, err)
	}
	u, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	if u == nil {
		_ = s.sessions.RevokeUser(ctx, uid)
		return nil, domain.E(domain.KindUnauthorized, op, "account no longer exists")
	}
	at, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	return &Session{AccessToken: at, RefreshToken: next, Identity: domain.Identity{UserID: u.ID, Email: u.Email}}, nil
}

func (s *AuthService) OAuthEnabled() bool { return s.provider != nil }

func (s *AuthService) OAuthURL(state string) (string, error) {
	if s.provider == nil {
		return "", domain.E(domain.KindUnavailable, "auth.oauth_url", "oauth sign-in is not configured")
	}
	return s.provider.AuthCodeURL(state), nil
}

// OAuthCallback 用授权码换身份：已绑定的直接登录；同邮箱且已验证的账号自动绑定；否则新建
func (s *AuthService) OAuthCallback(ctx context.Context, code string) (*Session, error) {
	const op = "auth.oauth_callback"
	if s.provider == nil {
		return nil, domain.E(domain.KindUnavailable, op, "oauth sign-in is not configured")
	}
	if code == "" {
		return nil, domain.E(domain.KindInvalid, op, "missing authorization code")
	}
	info, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.log.Warn("oauth exchange failed", zap.Error(err))
		return nil, domain.Wrap(domain.KindUnauthorized, op, err)
	}
	u, err := s.users.FindByOAuth(ctx, info.Provider, info.Subject)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	if u != nil {
		return s.issue(ctx, u)
	}

	email, err := normalizeEmail(op, info.Email)
	if err != nil {
		return nil, err
	}
	u, err = s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	if u != nil {
		if !info.EmailVerified {
			return nil, domain.E(domain.KindConflict, op, "email already registered")
		}
		u.OAuthProvider, u.OAuthSubject = info.Provider, info.Subject
		if err := s.users.Update(ctx, u); err != nil {
			return nil, err
		}
		s.log.Info("oauth identity linked", zap.String("uid", u.ID), zap.String("provider", info.Provider))
		return s.issue(ctx, u)
	}

	u = &domain.User{
		ID:            utils.NewID(),
		Email:         email,
		OAuthProvider: info.Provider,
		OAuthSubject:  info.Subject,
	}
	// 第三方资料不可控，超长截断而不是拒绝
	u.Profile.DisplayName = truncateRunes(s.clean.Text(info.Name), maxDisplayName)
	if isHTTPURL(info.Picture) {
		u.Profile.AvatarURL = info.Picture
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user signed up via oauth", zap.String("uid", u.ID), zap.String("provider", info.Provider))
	return s.issue(ctx, u)
}

func (s *AuthService) CurrentUser(ctx context.Context, uid string) (*domain.User, error) {
	const op = "auth.current_user"
	u, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	if u == nil {
		return nil, domain.E(domain.KindNotFound, op, "user not found")
	}
	return u, nil
}

// UpdateUser 改邮箱、密码、资料。改密码会踢掉全部旧会话并返回新会话
func (s *AuthService) UpdateUser(ctx context.Context, uid string, in UpdateUserInput) (*domain.User, *Session, error) {
	const op = "auth.update_user"
	u, err := s.CurrentUser(ctx, uid)
	if err != nil {
		return nil, nil, err
	}
	if in.Email != nil {
		email, err := normalizeEmail(op, *in.Email)
		if err != nil {
			return nil, nil, err
		}
		if email != u.Email {
			other, err := s.users.FindByEmail(ctx, email)
			if err != nil {
				return nil, nil, domain.Wrap(domain.KindInternal, op, err)
			}
			if other != nil {
				return nil, nil, domain.E(domain.KindConflict, op, "email already registered")
			}
			u.Email = email
		}
	}
	pwChanged := false
	if in.Password != nil {
		if u.PasswordHash != "" && !utils.CheckPassword(in.CurrentPassword, u.PasswordHash) {
			return nil, nil, domain.E(domain.KindUnauthorized, op, "current password is wrong")
		}
		if err := checkPassword(op, *in.Password); err != nil {
			return nil, nil, err
		}
		hash, err := utils.HashPassword(*in.Password)
		if err != nil {
			return nil, nil, domain.Wrap(domain.KindInternal, op, err)
		}
		u.PasswordHash = hash
		pwChanged = true
	}
	if err := applyProfile(op, s.clean, &u.Profile, in.Profile); err != nil {
		return nil, nil, err
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, nil, err
	}
	if !pwChanged {
		return u, nil, nil
	}
	if err := s.sessions.RevokeUser(ctx, u.ID); err != nil {
		s.log.Warn("revoke sessions after password change", zap.String("uid", u.ID), zap.Error(err))
	}
	sess, err := s.issue(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	return u, sess, nil
}

// RevokeUser 删号后调用
func (s *AuthService) RevokeUser(ctx context.Context, uid string) error {
	return s.sessions.RevokeUser(ctx, uid)
}

func (s *AuthService) issue(ctx context.Context, u *domain.User) (*Session, error) {
	const op = "auth.issue"
	at, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, op, err)
	}
	rt, err := s.sessions.Issue(ctx, u.ID)
	if err != nil {
		return nil, domain.Wrap(domain.KindUnavailable, op, err)
	}
	return &Session{AccessToken: at, RefreshToken: rt, Identity: domain.Identity{UserID: u.ID, Email: u.Email}}, nil
}
