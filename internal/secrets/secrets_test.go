package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mapGetter map[string]string

func (m mapGetter) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func TestResolveSource(t *testing.T) {
	assert.Equal(t, SourceEnvironment, ResolveSource(SourceAuto, "development"))
	assert.Equal(t, SourceEnvironment, ResolveSource(SourceAuto, ""))
	assert.Equal(t, SourceVault, ResolveSource(SourceAuto, "production"))
	assert.Equal(t, SourceVault, ResolveSource(SourceAuto, "staging"))
	assert.Equal(t, SourceEnvironment, ResolveSource(SourceEnvironment, "production"))
}

func TestProvider_Resolve(t *testing.T) {
	p := NewProviderWithGetter(SourceVault, mapGetter{
		"POSTGRES-MAIN-HOST": "db.internal",
		"POSTGRES-MAIN-USER": "vault-user",
	}, zap.NewNop())
	t.Setenv("TEST_DATABASE_USER", "env-user")

	host, user, password := "localhost", "default-user", "keep-me"
	missing := p.Resolve(context.Background(), []Binding{
		{Secret: "POSTGRES-MAIN-HOST", Env: "TEST_DATABASE_HOST", Target: &host},
		{Secret: "POSTGRES-MAIN-USER", Env: "TEST_DATABASE_USER", Target: &user},
		{Secret: "POSTGRES-MAIN-PASSWORD", Env: "TEST_DATABASE_PASSWORD", Target: &password},
	})

	assert.Equal(t, "db.internal", host)
	assert.Equal(t, "env-user", user, "environment overrides the vault")
	assert.Equal(t, "keep-me", password)
	assert.Equal(t, []string{"POSTGRES-MAIN-PASSWORD"}, missing)
}

func TestProvider_EnvironmentSource(t *testing.T) {
	p := NewProviderWithGetter(SourceEnvironment, nil, zap.NewNop())
	t.Setenv("TEST_SECRET_VALUE", "s3cret")

	v, err := p.GetSecret(context.Background(), "TEST_SECRET_VALUE")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	_, err = p.GetSecret(context.Background(), "TEST_SECRET_UNSET")
	assert.Error(t, err)
	assert.False(t, p.IsVaultEnabled())
}

func TestProvider_VaultWithoutClient(t *testing.T) {
	p := NewProviderWithGetter(SourceVault, nil, zap.NewNop())
	_, err := p.GetSecret(context.Background(), "anything")
	assert.Error(t, err)
}

func TestSecretCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newSecretCache(time.Minute, func() time.Time { return now })

	c.put("a", "1")
	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	now = now.Add(time.Minute)
	_, ok = c.get("a")
	assert.False(t, ok, "entries expire at the ttl")

	var disabled *secretCache
	disabled.put("a", "1")
	_, ok = disabled.get("a")
	assert.False(t, ok)
}
