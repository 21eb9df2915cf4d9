package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults_FillsBlankFields(t *testing.T) {
	d := NewDraft().SetServerVersion("")
	applied := d.ApplyDefaults(Defaults{
		ProjectGroup:   "acme",
		ProjectName:    "economy",
		ProjectVersion: "1.0.0",
		MainCandidates: []string{"com.acme.Economy"},
		UserName:       "ada",
		HasResources:   true,
	})

	fields := make([]string, 0, len(applied))
	for _, a := range applied {
		fields = append(fields, a.Field)
	}
	assert.Equal(t, []string{"Group", "Name", "Version", "ServerVersion", "Main", "Authors", "IncludesAssetPack"}, fields)

	assert.Equal(t, "acme:economy", d.Identifier())
	assert.Equal(t, "*", d.ServerVersion())
	assert.Equal(t, []Author{{Name: "ada"}}, d.Authors())
	assert.True(t, d.IncludesAssetPack())

	_, err := d.Render()
	require.NoError(t, err)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	d := validDraft()
	applied := d.ApplyDefaults(Defaults{
		ProjectGroup:   "other",
		ProjectName:    "other",
		ProjectVersion: "9.9.9",
		MainCandidates: []string{"com.other.Main"},
		UserName:       "someone",
	})

	assert.Empty(t, applied)
	assert.Equal(t, "acme:economy", d.Identifier())
	assert.Equal(t, "com.acme.economy.EconomyPlugin", d.Main())
	assert.Len(t, d.Authors(), 1)
}

func TestApplyDefaults_AuthorFallsBackToPluginName(t *testing.T) {
	d := NewDraft().SetName("economy")
	d.ApplyDefaults(Defaults{})
	assert.Equal(t, []Author{{Name: "economy-Author"}}, d.Authors())
}

func TestApplyDefaults_MultipleMainCandidates(t *testing.T) {
	d := NewDraft()
	applied := d.ApplyDefaults(Defaults{MainCandidates: []string{"a.Main", "b.Main"}})

	assert.Empty(t, d.Main())
	assert.Contains(t, applied, Defaulted{Field: "Main", Reason: "multiple main candidates: a.Main, b.Main"})
}

func TestApplyDefaults_FallbackVersion(t *testing.T) {
	d := NewDraft()
	applied := d.ApplyDefaults(Defaults{})

	assert.Equal(t, FallbackVersion, d.Version())
	assert.Contains(t, applied, Defaulted{Field: "Version", Value: "0.0.0", Reason: "fallback version"})
}

func TestApplyDefaults_SealedDraft(t *testing.T) {
	d := validDraft()
	_, err := d.Render()
	require.NoError(t, err)
	assert.Nil(t, d.ApplyDefaults(Defaults{HasResources: true}))
	assert.False(t, d.IncludesAssetPack())
}
