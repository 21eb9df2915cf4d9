package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppCredentials_Configured(t *testing.T) {
	assert.False(t, AppCredentials{}.Configured())
	assert.True(t, AppCredentials{AppID: 1}.Configured())
	assert.True(t, AppCredentials{PrivateKey: []byte("pem")}.Configured())
}

func TestNewAppAuth_Errors(t *testing.T) {
	tests := []struct {
		name  string
		creds AppCredentials
	}{
		{"empty", AppCredentials{}},
		{"missing key", AppCredentials{AppID: 1, InstallationID: 2}},
		{"missing installation", AppCredentials{AppID: 1, PrivateKey: []byte("pem")}},
		{"unparsable key", AppCredentials{AppID: 1, InstallationID: 2, PrivateKey: []byte("not a pem")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := NewAppAuth(tt.creds)
			assert.Error(t, err)
			assert.Nil(t, auth)
		})
	}
}
