package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fkhayef/eventcheckin/pkg/apperr"
)

func TestRules(t *testing.T) {
	assert.Empty(t, Username("student01"))
	assert.NotEmpty(t, Username("abc"))
	assert.NotEmpty(t, Username("student_01"))

	assert.Empty(t, Password("12345"))
	assert.NotEmpty(t, Password("1234"))

	assert.Empty(t, Phone("0901234567"))
	assert.NotEmpty(t, Phone("090-123"))
	assert.NotEmpty(t, Phone("1234"))

	assert.Empty(t, Fullname("Nguyễn Văn An"))
	assert.NotEmpty(t, Fullname("An 2"))
	assert.NotEmpty(t, Fullname(""))

	assert.Empty(t, StudentID("102190001", 9))
	assert.NotEmpty(t, StudentID("10219000a", 9))

	assert.Empty(t, Email("a@example.com"))
	assert.NotEmpty(t, Email("not-an-email"))
}

func TestErrors(t *testing.T) {
	errs := Errors{}
	assert.NoError(t, errs.Err())

	errs.Check("phone", "")
	errs.Check("phone", "first")
	errs.Check("phone", "second")

	err := errs.Err()
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.Equal(t, "first", errs["phone"])
}
