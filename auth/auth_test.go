package auth

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsefeed/pulsefeed/config"
	"github.com/pulsefeed/pulsefeed/utils"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "auth-test-secret")
	config.Load()
	os.Exit(m.Run())
}

func issueToken(t *testing.T) string {
	t.Helper()
	token, err := utils.GenerateToken("u1", "ada", "Ada Lovelace", "/avatar.png", time.Hour)
	require.NoError(t, err)
	return token
}

func TestSetTokenEstablishesUser(t *testing.T) {
	svc := NewTokenService()
	require.Nil(t, svc.CurrentUser())

	require.NoError(t, svc.SetToken(issueToken(t)))

	user := svc.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "ada", user.Username)
	assert.Equal(t, "Ada Lovelace", user.DisplayName)
	assert.Equal(t, "/avatar.png", user.Avatar)
}

func TestSetTokenRejectsGarbage(t *testing.T) {
	svc := NewTokenService()
	assert.Error(t, svc.SetToken("not-a-token"))
	assert.Nil(t, svc.CurrentUser())
}

func TestClearSignsOut(t *testing.T) {
	svc := NewTokenService()
	require.NoError(t, svc.SetToken(issueToken(t)))

	svc.Clear()
	assert.Nil(t, svc.CurrentUser())
}

func TestOnAuthChangeNotifiesWatchers(t *testing.T) {
	svc := NewTokenService()

	var seen []*User
	unsubscribe := svc.OnAuthChange(func(u *User) {
		seen = append(seen, u)
	})

	require.NoError(t, svc.SetToken(issueToken(t)))
	svc.Clear()

	require.Len(t, seen, 2)
	require.NotNil(t, seen[0])
	assert.Equal(t, "u1", seen[0].ID)
	assert.Nil(t, seen[1])

	unsubscribe()
	unsubscribe() // second call is a no-op
	require.NoError(t, svc.SetToken(issueToken(t)))
	assert.Len(t, seen, 2)
}
