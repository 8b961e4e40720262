package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.NotEmpty(t, c.Welcome)
	assert.NotEmpty(t, c.Rules)
	assert.NotEmpty(t, c.Schedule)
	assert.NotEmpty(t, c.Speakers)
	assert.NotEmpty(t, c.Venue)
	assert.Equal(t, "Contact the organisers: @team", c.ContactsFor("@team"))
}

func TestLoad_OverridesSomeKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.yaml")
	require.NoError(t, os.WriteFile(path, []byte("venue: Minsk, Arena\ncontacts: call us\n"), 0o600))

	c, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "Minsk, Arena", c.Venue)
	assert.Equal(t, "call us", c.ContactsFor("@team"))
	assert.Equal(t, Default().Schedule, c.Schedule)
}

func TestLoad_EmptyPath(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
