package tlspool

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{Success, "success"},
		{Failed, "failed"},
		{NoMemoryPool, "no_memory_pool"},
		{FromElse, "from_else"},
		{Kind(42), "kind(42)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.String())
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"nil is success", nil, Success},
		{"failed", ErrFailed, Failed},
		{"wrapped failed", fmt.Errorf("%w: exhausted", ErrFailed), Failed},
		{"no memory pool", ErrNoMemoryPool, NoMemoryPool},
		{"thread closed", fmt.Errorf("%w: %w", ErrNoMemoryPool, ErrThreadClosed), NoMemoryPool},
		{"from else", fmt.Errorf("%w: 0xc000", ErrFromElse), FromElse},
		{"foreign error", errors.New("boom"), Failed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestOutOfMemoryError(t *testing.T) {
	cause := fmt.Errorf("%w: exhausted", ErrFailed)
	err := &OutOfMemoryError{Pool: "order@freelist", Count: 8, Err: cause}

	assert.Contains(t, err.Error(), "allocating 8 from order@freelist")
	assert.ErrorIs(t, err, ErrFailed)

	var oom *OutOfMemoryError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &oom))
	assert.Equal(t, 8, oom.Count)
}
