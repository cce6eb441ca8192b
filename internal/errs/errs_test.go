package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfLooksThroughWrapping(t *testing.T) {
	base := New(KindValidation, "insufficient stock, currently available = %d", 2)
	wrapped := fmt.Errorf("borrowing: %w", base)

	assert.Equal(t, KindValidation, KindOf(wrapped))
	assert.Equal(t, "insufficient stock, currently available = 2", Message(wrapped))
	assert.False(t, CanFallback(wrapped))
}

func TestCanFallback(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{Wrap(KindConnectivity, "list items", errors.New("dial tcp: connection refused")), true},
		{Wrap(KindServer, "list items", errors.New("502")), true},
		{context.DeadlineExceeded, true},
		{Validation("name required"), false},
		{NotFound("item not found"), false},
		{Storage("put item", errors.New("disk full")), false},
		{errors.New("plain"), false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanFallback(tt.err), "%v", tt.err)
	}
}

func TestNeedsEndpointPromptOnlyForConnectivity(t *testing.T) {
	assert.True(t, NeedsEndpointPrompt(Wrap(KindConnectivity, "login", errors.New("no such host"))))
	assert.False(t, NeedsEndpointPrompt(Wrap(KindServer, "login", errors.New("500"))))
	assert.False(t, NeedsEndpointPrompt(Unauthorized("invalid credentials")))
}

func TestErrorString(t *testing.T) {
	err := Wrap(KindStorage, "replacing items", errors.New("constraint failed"))
	assert.Equal(t, "replacing items: constraint failed", err.Error())
	assert.Equal(t, "storage", KindOf(err).String())
}
