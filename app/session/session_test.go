package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atsdesk/atsdesk/app/api"
)

type fakeAuth struct {
	resp api.LoginResponse
	err  error
}

func (f fakeAuth) Login(_ context.Context, username, _ string) (api.LoginResponse, error) {
	if f.err != nil {
		return api.LoginResponse{}, f.err
	}
	f.resp.User.Username = username
	return f.resp, nil
}

func TestSession_Login(t *testing.T) {
	s := New("")
	assert.False(t, s.Authenticated())

	user, err := s.Login(context.Background(), fakeAuth{resp: api.LoginResponse{Token: "tok",
		User: api.User{Roles: []string{"admin"}}}}, "admin", "pw")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
	assert.True(t, s.Authenticated())
	assert.Equal(t, "tok", s.Token())
	assert.True(t, s.User().IsAdmin())

	s.Logout()
	assert.False(t, s.Authenticated())
	assert.Equal(t, api.User{}, s.User())
}

func TestSession_LoginFailedKeepsState(t *testing.T) {
	s := New("preset")
	_, err := s.Login(context.Background(), fakeAuth{err: &api.Error{StatusCode: 401, Message: "Invalid credentials"}}, "x", "y")
	require.Error(t, err)
	var apiErr *api.Error
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "preset", s.Token())
}

func TestSession_NilToken(t *testing.T) {
	var s *Session
	assert.Equal(t, "", s.Token())
}
