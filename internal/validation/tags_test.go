package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rangeCheck struct {
	Range   string `validate:"required,semver_range"`
	Version string `validate:"required,semver"`
}

type pluginRef struct {
	ID    string `validate:"required,plugin_identifier"`
	Main  string `validate:"omitempty,fqcn"`
	Email string `validate:"omitempty,manifest_email"`
	Site  string `validate:"omitempty,http_uri"`
}

func TestStructValidator_Tags(t *testing.T) {
	v := NewStructValidator()

	require.NoError(t, v.Struct(rangeCheck{Range: "^1.2.0", Version: "1.4.0"}))
	require.NoError(t, v.Struct(pluginRef{
		ID:    "acme:economy",
		Main:  "com.acme.Economy",
		Email: "dev@acme.com",
		Site:  "https://acme.com",
	}))

	err := v.Struct(rangeCheck{Range: "^1.2", Version: "1.x.0"})
	require.Error(t, err)
	entries := FromStructErrors("request", err)
	require.Len(t, entries, 2)
	assert.Equal(t, "rangeCheck.Range", entries[0].Key)
	assert.Equal(t, "failed on 'semver_range'", entries[0].Message)
	assert.Equal(t, "^1.2", entries[0].ValueString())
	assert.Equal(t, "rangeCheck.Version", entries[1].Key)

	err = v.Struct(pluginRef{ID: "acme", Main: "1Main", Email: "nope", Site: "ftp://x.y"})
	require.Error(t, err)
	keys := []string{}
	for _, e := range FromStructErrors("request", err) {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"pluginRef.ID", "pluginRef.Main", "pluginRef.Email", "pluginRef.Site"}, keys)
}

func TestFromStructErrors_OtherErrors(t *testing.T) {
	assert.Nil(t, FromStructErrors("request", nil))

	entries := FromStructErrors("request", errors.New("boom"))
	require.Len(t, entries, 1)
	assert.Equal(t, "request", entries[0].Key)
	assert.Equal(t, "boom", entries[0].Message)
	assert.Nil(t, entries[0].Value)
}
