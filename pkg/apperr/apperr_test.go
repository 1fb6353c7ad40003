package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSample = New(Conflict, "sample conflict")

func TestDetail_MatchesSentinel(t *testing.T) {
	err := Detail(errSample, "cannot join while in group %s", "CNTT")

	assert.True(t, errors.Is(err, errSample))
	assert.Equal(t, "cannot join while in group CNTT", err.Error())
	assert.Equal(t, Conflict, KindOf(err))
}

func TestKindOf_WrappedAndPlain(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", New(NotFound, "event not found"))
	assert.Equal(t, NotFound, KindOf(wrapped))

	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.Equal(t, Storage, KindOf(Wrap(Storage, "failed to store file", errors.New("disk full"))))
}

func TestIsExpected(t *testing.T) {
	assert.True(t, IsExpected(errSample))
	assert.True(t, IsExpected(Invalid(map[string]string{"phone": "invalid"})))
	assert.False(t, IsExpected(errors.New("driver: bad connection")))
	assert.False(t, IsExpected(Wrap(Storage, "failed to store file", nil)))
}
