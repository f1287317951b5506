package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/socialhub/internal/model"
	"github.com/hitoshi/socialhub/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.User, error)
	createWithIdentityFn func(ctx context.Context, user *model.User, identity *model.Identity) error
	updateProfileFn      func(ctx context.Context, id, name, image string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if m.createWithIdentityFn != nil {
		return m.createWithIdentityFn(ctx, user, identity)
	}
	return nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, id, name, image string) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, id, name, image)
	}
	return nil
}

type mockIdentityRepo struct {
	findByProviderFn func(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

func (m *mockIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	if m.findByProviderFn != nil {
		return m.findByProviderFn(ctx, provider, providerUserID)
	}
	return nil, nil
}

type mockSessionRepo struct {
	createFn     func(ctx context.Context, session *model.Session) error
	findByIDFn   func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.IdentityRepository = (*mockIdentityRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)

func googleUser() *mockOAuthProvider {
	return &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{
				ProviderUserID: "google-user-123",
				Email:          "alice@example.com",
				Name:           "Alice",
				Image:          "https://example.com/alice.png",
				Provider:       ProviderGoogle,
			}, nil
		},
	}
}

// --- テスト ---

func TestGetLoginURL_DelegatesToProvider(t *testing.T) {
	provider := &mockOAuthProvider{
		getLoginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/v2/auth?state=" + state
		},
	}
	svc := NewService(provider, nil, nil, nil, ServiceConfig{SessionMaxAge: 86400})

	want := "https://accounts.google.com/o/oauth2/v2/auth?state=test-state"
	if got := svc.GetLoginURL("test-state"); got != want {
		t.Errorf("GetLoginURL() = %q, want %q", got, want)
	}
}

func TestHandleCallback_NewUser_CreatesUserAndSession(t *testing.T) {
	var createdUser *model.User
	var createdIdentity *model.Identity
	var createdSession *model.Session

	userRepo := &mockUserRepo{
		createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			createdUser = user
			createdIdentity = identity
			return nil
		},
		updateProfileFn: func(ctx context.Context, id, name, image string) error {
			t.Error("UpdateProfile should not be called for a new user")
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			createdSession = session
			return nil
		},
	}

	svc := NewService(googleUser(), userRepo, &mockIdentityRepo{}, sessionRepo, ServiceConfig{SessionMaxAge: 3600})

	session, err := svc.HandleCallback(context.Background(), "code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	if createdUser == nil || createdIdentity == nil {
		t.Fatal("expected user and identity to be created")
	}
	if createdUser.Image != "https://example.com/alice.png" {
		t.Errorf("user.Image = %q", createdUser.Image)
	}
	if createdIdentity.UserID != createdUser.ID {
		t.Errorf("identity.UserID = %q, want %q", createdIdentity.UserID, createdUser.ID)
	}
	if createdSession == nil || createdSession.UserID != createdUser.ID {
		t.Fatalf("session not created for new user: %+v", createdSession)
	}
	if session.UserName != "Alice" || session.UserImage != "https://example.com/alice.png" {
		t.Errorf("session profile = %q/%q", session.UserName, session.UserImage)
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64", len(session.ID))
	}
	if d := session.ExpiresAt.Sub(session.CreatedAt); d != time.Hour {
		t.Errorf("session lifetime = %v, want 1h", d)
	}
}

func TestHandleCallback_ExistingUser_UpdatesProfile(t *testing.T) {
	var updatedID, updatedName, updatedImage string

	identRepo := &mockIdentityRepo{
		findByProviderFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
			return &model.Identity{ID: "identity-1", UserID: "existing-user", Provider: provider, ProviderUserID: providerUserID}, nil
		},
	}
	userRepo := &mockUserRepo{
		createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			t.Error("CreateWithIdentity should not be called for an existing user")
			return nil
		},
		updateProfileFn: func(ctx context.Context, id, name, image string) error {
			updatedID, updatedName, updatedImage = id, name, image
			return nil
		},
	}

	svc := NewService(googleUser(), userRepo, identRepo, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 3600})

	session, err := svc.HandleCallback(context.Background(), "code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if session.UserID != "existing-user" {
		t.Errorf("session.UserID = %q, want existing-user", session.UserID)
	}
	if updatedID != "existing-user" || updatedName != "Alice" || updatedImage != "https://example.com/alice.png" {
		t.Errorf("UpdateProfile(%q, %q, %q)", updatedID, updatedName, updatedImage)
	}
}

func TestHandleCallback_ExistingUser_UnchangedProfile(t *testing.T) {
	identRepo := &mockIdentityRepo{
		findByProviderFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
			return &model.Identity{
				ID: "identity-1", UserID: "existing-user", Provider: provider, ProviderUserID: providerUserID,
				UserName: "Alice", UserImage: "https://example.com/alice.png",
			}, nil
		},
	}
	userRepo := &mockUserRepo{
		updateProfileFn: func(ctx context.Context, id, name, image string) error {
			t.Error("UpdateProfile should not be called when the profile is unchanged")
			return nil
		},
	}

	svc := NewService(googleUser(), userRepo, identRepo, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 3600})

	session, err := svc.HandleCallback(context.Background(), "code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if session.UserName != "Alice" || session.UserImage != "https://example.com/alice.png" {
		t.Errorf("session profile = %q, %q", session.UserName, session.UserImage)
	}
}

func TestHandleCallback_ExchangeError(t *testing.T) {
	provider := &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return nil, errors.New("invalid_grant")
		},
	}
	svc := NewService(provider, &mockUserRepo{}, &mockIdentityRepo{}, &mockSessionRepo{}, ServiceConfig{})

	if _, err := svc.HandleCallback(context.Background(), "bad"); err == nil {
		t.Fatal("expected error")
	}
}

func TestHandleCallback_SessionSaveError(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			return errors.New("db down")
		},
	}
	svc := NewService(googleUser(), &mockUserRepo{}, &mockIdentityRepo{}, sessionRepo, ServiceConfig{SessionMaxAge: 60})

	if _, err := svc.HandleCallback(context.Background(), "code"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSignOut_DeletesSession(t *testing.T) {
	var deleted string
	sessionRepo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := NewService(nil, nil, nil, sessionRepo, ServiceConfig{})

	if err := svc.SignOut(context.Background(), "sess-1"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if deleted != "sess-1" {
		t.Errorf("deleted = %q, want sess-1", deleted)
	}
}

func TestSignOut_EmptySessionID(t *testing.T) {
	svc := NewService(nil, nil, nil, &mockSessionRepo{}, ServiceConfig{})

	if err := svc.SignOut(context.Background(), ""); !errors.Is(err, ErrSessionIDRequired) {
		t.Errorf("err = %v, want ErrSessionIDRequired", err)
	}
}

func TestGetSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		sessionID string
		found     *model.Session
		findErr   error
		wantNil   bool
		wantErr   bool
	}{
		{name: "empty id", sessionID: "", wantNil: true},
		{name: "not found", sessionID: "missing", wantNil: true},
		{
			name:      "expired",
			sessionID: "old",
			found:     &model.Session{ID: "old", ExpiresAt: now.Add(-time.Second)},
			wantNil:   true,
		},
		{
			name:      "valid",
			sessionID: "sess-1",
			found:     &model.Session{ID: "sess-1", UserID: "user-1", UserName: "Alice", ExpiresAt: now.Add(time.Hour)},
		},
		{name: "repository error", sessionID: "sess-1", findErr: errors.New("db down"), wantNil: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessionRepo := &mockSessionRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
					return tt.found, tt.findErr
				},
			}
			svc := NewService(nil, nil, nil, sessionRepo, ServiceConfig{})
			svc.now = func() time.Time { return now }

			session, err := svc.GetSession(context.Background(), tt.sessionID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if (session == nil) != tt.wantNil {
				t.Errorf("session = %+v, wantNil %v", session, tt.wantNil)
			}
			if session != nil && session.UserName != "Alice" {
				t.Errorf("UserName = %q, want Alice", session.UserName)
			}
		})
	}
}
