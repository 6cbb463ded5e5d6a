package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"edupulse/internal/testutil"
	"edupulse/internal/validation"
)

var testIssuer = Issuer{Name: "edupulse-test", Key: []byte("test-key"), AccessTTL: time.Minute, RefreshTTL: time.Hour}

func newService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewDB(t)
	return NewService(NewRepository(db.Client), testIssuer, zap.NewNop())
}

func register(t *testing.T, svc *Service) Session {
	t.Helper()
	sess, err := svc.Register(context.Background(), RegisterInput{Email: " Teacher@School.test ", Name: "Ms. Mensah", Password: "correct-horse"})
	require.NoError(t, err)
	return sess
}

func TestService_RegisterAndLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	sess := register(t, svc)
	assert.Equal(t, "teacher@school.test", sess.Teacher.Email)
	assert.NotEmpty(t, sess.Tokens.AccessToken)
	assert.NotEqual(t, "correct-horse", sess.Teacher.PasswordHash)

	_, err := svc.Register(ctx, RegisterInput{Email: "teacher@school.test", Name: "Again", Password: "another-pass"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Register(ctx, RegisterInput{Email: "not-an-email", Name: "X", Password: "short"})
	fields := validation.Fields(err)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")

	tests := []struct {
		name    string
		in      LoginInput
		wantErr error
	}{
		{name: "ok, email case ignored", in: LoginInput{Email: "TEACHER@school.test", Password: "correct-horse"}},
		{name: "wrong password", in: LoginInput{Email: "teacher@school.test", Password: "wrong-horse"}, wantErr: ErrInvalidCredentials},
		{name: "unknown email", in: LoginInput{Email: "nobody@school.test", Password: "correct-horse"}, wantErr: ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Login(ctx, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, sess.Teacher.ID, got.Teacher.ID)
		})
	}
}

func TestService_RefreshRotates(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	sess := register(t, svc)

	next, err := svc.Refresh(ctx, sess.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Tokens.RefreshToken, next.Tokens.RefreshToken)
	assert.Equal(t, sess.Teacher.ID, next.Teacher.ID)

	_, err = svc.Refresh(ctx, sess.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh, "a rotated token cannot be reused")

	_, err = svc.Refresh(ctx, sess.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh, "access tokens are not refresh tokens")

	_, err = svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidRefresh)

	_, err = svc.Refresh(ctx, next.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestService_SecurityPassword(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	id := register(t, svc).Teacher.ID

	require.NoError(t, svc.RequireSecurity(ctx, id, ""), "no security password set yet")
	ok, err := svc.VerifySecurity(ctx, id, "anything")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.SetSecurityPassword(ctx, id, SecurityInput{Password: "s3cret!"}))

	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "missing", password: "", wantErr: ErrSecurityRequired},
		{name: "wrong", password: "guess", wantErr: ErrSecurityPassword},
		{name: "right", password: "s3cret!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, svc.RequireSecurity(ctx, id, tt.password), tt.wantErr)
		})
	}

	err = svc.SetSecurityPassword(ctx, id, SecurityInput{CurrentPassword: "guess", Password: "another"})
	assert.ErrorIs(t, err, ErrSecurityPassword)

	require.NoError(t, svc.SetSecurityPassword(ctx, id, SecurityInput{CurrentPassword: "s3cret!", Password: "another"}))
	ok, err = svc.VerifySecurity(ctx, id, "another")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.VerifySecurity(ctx, id, "s3cret!")
	require.NoError(t, err)
	assert.False(t, ok)
}
