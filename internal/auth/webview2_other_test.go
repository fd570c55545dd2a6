//go:build !windows

package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebView2UnsupportedOutsideWindows(t *testing.T) {
	creds, err := NewWebView2Authenticator("https://sap.example.com/odata", false).Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrWebView2Unsupported)
	assert.Nil(t, creds)
}
