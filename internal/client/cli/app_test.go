package cli

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/buildingkeeper/internal/client/config"
	"github.com/dmitrijs2005/buildingkeeper/internal/client/session"
)

type fakeAPI struct {
	loginErr   error
	refreshErr error
	whoamiErrs []error
	logoutErr  error

	lastAuth  string
	refreshed []string
	loggedOut []string
	rotation  int
}

func pair(n int) *structpb.Struct {
	s, _ := structpb.NewStruct(map[string]any{
		"access":  "access-" + strconv.Itoa(n),
		"refresh": "refresh-" + strconv.Itoa(n),
	})
	return s
}

func (f *fakeAPI) Login(_ context.Context, email, password string, _ ...grpc.CallOption) (*structpb.Struct, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return pair(0), nil
}

func (f *fakeAPI) Refresh(_ context.Context, refresh string, _ ...grpc.CallOption) (*structpb.Struct, error) {
	f.refreshed = append(f.refreshed, refresh)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	f.rotation++
	return pair(f.rotation), nil
}

func (f *fakeAPI) Logout(_ context.Context, refresh string, _ ...grpc.CallOption) error {
	f.loggedOut = append(f.loggedOut, refresh)
	return f.logoutErr
}

func (f *fakeAPI) LogoutAll(ctx context.Context, _ ...grpc.CallOption) (*structpb.Struct, error) {
	f.lastAuth = bearer(ctx)
	return structpb.NewStruct(map[string]any{"detail": "logged_out_all", "revoked": 3})
}

func (f *fakeAPI) WhoAmI(ctx context.Context, _ ...grpc.CallOption) (*structpb.Struct, error) {
	f.lastAuth = bearer(ctx)
	if len(f.whoamiErrs) > 0 {
		err := f.whoamiErrs[0]
		f.whoamiErrs = f.whoamiErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return structpb.NewStruct(map[string]any{"id": "u1", "email": "p@example.com", "roles": []any{"user"}})
}

func bearer(ctx context.Context) string {
	md, _ := metadata.FromOutgoingContext(ctx)
	if v := md.Get("authorization"); len(v) > 0 {
		return v[0]
	}
	return ""
}

type memStore struct {
	saved   session.Session
	cleared bool
	saveErr error
}

func (m *memStore) Load(context.Context) (session.Session, error) { return m.saved, nil }
func (m *memStore) Save(_ context.Context, s session.Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = s
	return nil
}
func (m *memStore) Clear(context.Context) error {
	m.saved = session.Session{}
	m.cleared = true
	return nil
}

func newTestApp(t *testing.T, input string) (*App, *fakeAPI, *memStore, *bytes.Buffer) {
	t.Helper()
	origRead := readPassword
	readPassword = func(int) ([]byte, error) { return []byte("secret"), nil }
	t.Cleanup(func() { readPassword = origRead })

	api := &fakeAPI{}
	store := &memStore{}
	out := &bytes.Buffer{}
	a := newApp(&config.Config{RequestTimeout: time.Second}, api, store, strings.NewReader(input), out)
	return a, api, store, out
}

func TestLogin_SavesSession(t *testing.T) {
	a, _, store, out := newTestApp(t, "p@example.com\n")

	require.NoError(t, a.Login(context.Background()))
	assert.Equal(t, session.Session{Email: "p@example.com", AccessToken: "access-0", RefreshToken: "refresh-0"}, store.saved)
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "(p@example.com)", a.status())
	assert.Contains(t, out.String(), "Login successful")
}

func TestLogin_Rejected(t *testing.T) {
	a, api, store, out := newTestApp(t, "p@example.com\n")
	api.loginErr = status.Error(codes.Unauthenticated, "invalid credentials")

	require.Error(t, a.Login(context.Background()))
	assert.False(t, a.isLoggedIn())
	assert.True(t, store.saved.Empty())
	assert.Contains(t, out.String(), "error: invalid credentials")
}

func TestRefresh_Rotates(t *testing.T) {
	a, api, store, _ := newTestApp(t, "p@example.com\n")
	ctx := context.Background()
	require.NoError(t, a.Login(ctx))

	require.NoError(t, a.Refresh(ctx))
	require.NoError(t, a.Refresh(ctx))
	assert.Equal(t, []string{"refresh-0", "refresh-1"}, api.refreshed)
	assert.Equal(t, "refresh-2", store.saved.RefreshToken)
}

func TestRefresh_RejectedEndsSession(t *testing.T) {
	a, api, store, out := newTestApp(t, "p@example.com\n")
	ctx := context.Background()
	require.NoError(t, a.Login(ctx))

	api.refreshErr = status.Error(codes.Unauthenticated, "refresh token reuse detected")
	require.Error(t, a.Refresh(ctx))
	assert.False(t, a.isLoggedIn())
	assert.True(t, store.cleared)
	assert.Contains(t, out.String(), "refresh token reuse detected")
}

func TestRefresh_TransientErrorKeepsSession(t *testing.T) {
	a, api, _, _ := newTestApp(t, "p@example.com\n")
	ctx := context.Background()
	require.NoError(t, a.Login(ctx))

	api.refreshErr = status.Error(codes.Unavailable, "service temporarily unavailable")
	require.Error(t, a.Refresh(ctx))
	assert.True(t, a.isLoggedIn())
}

func TestWhoAmI_RefreshesExpiredAccessToken(t *testing.T) {
	a, api, _, out := newTestApp(t, "p@example.com\n")
	ctx := context.Background()
	require.NoError(t, a.Login(ctx))

	api.whoamiErrs = []error{status.Error(codes.Unauthenticated, "invalid token")}
	require.NoError(t, a.WhoAmI(ctx))
	assert.Equal(t, "Bearer access-1", api.lastAuth)
	assert.Contains(t, out.String(), "u1 p@example.com roles=[user]")
}

func TestWhoAmI_NotLoggedIn(t *testing.T) {
	a, _, _, _ := newTestApp(t, "")
	assert.ErrorIs(t, a.WhoAmI(context.Background()), errNotLoggedIn)
	assert.ErrorIs(t, a.LogoutAll(context.Background()), errNotLoggedIn)
	assert.ErrorIs(t, a.Refresh(context.Background()), errNotLoggedIn)
}

func TestLogout_DropsSessionEvenOnServerError(t *testing.T) {
	a, api, store, _ := newTestApp(t, "p@example.com\n")
	ctx := context.Background()
	require.NoError(t, a.Login(ctx))

	api.logoutErr = status.Error(codes.Unavailable, "down")
	require.NoError(t, a.Logout(ctx))
	assert.Equal(t, []string{"refresh-0"}, api.loggedOut)
	assert.True(t, store.cleared)
	assert.False(t, a.isLoggedIn())
}

func TestLogoutAll(t *testing.T) {
	a, api, store, out := newTestApp(t, "p@example.com\n")
	ctx := context.Background()
	require.NoError(t, a.Login(ctx))

	require.NoError(t, a.LogoutAll(ctx))
	assert.Equal(t, "Bearer access-0", api.lastAuth)
	assert.True(t, store.cleared)
	assert.Contains(t, out.String(), "3 sessions revoked")
}

func TestRun_LoadsSessionAndExits(t *testing.T) {
	origPrint := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = origPrint })

	a, api, store, _ := newTestApp(t, "whoami\nexit\n")
	store.saved = session.Session{Email: "p@example.com", AccessToken: "stored", RefreshToken: "r"}

	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, "Bearer stored", api.lastAuth)
}

func TestLogin_SaveFailure(t *testing.T) {
	a, _, store, _ := newTestApp(t, "p@example.com\n")
	store.saveErr = errors.New("disk full")
	assert.Error(t, a.Login(context.Background()))
}
