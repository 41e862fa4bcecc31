package services

import (
	"errors"
	"regexp"
	"strconv"
	"testing"

	"naftapp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	accounts := NewAccountService(f.deps)

	u, err := accounts.Signup(f.ctx, "  Ana <b>Perez</b> ", " Ana@Example.com ", "secreto")
	require.NoError(t, err)
	assert.Equal(t, "Ana Perez", u.Name)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.NotEqual(t, "secreto", u.Password)

	_, err = accounts.Signup(f.ctx, "Otra", "ana@example.com", "secreto")
	requireKind(t, err, KindConflict)

	got, err := accounts.Authenticate(f.ctx, "ANA@example.com", "secreto")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = accounts.Authenticate(f.ctx, "ana@example.com", "incorrecto")
	requireKind(t, err, KindUnauthenticated)
	_, err = accounts.Authenticate(f.ctx, "nadie@example.com", "secreto")
	requireKind(t, err, KindUnauthenticated)
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)
	accounts := NewAccountService(f.deps)

	_, err := accounts.Signup(f.ctx, "", "no-es-un-mail", "123")
	requireKind(t, err, KindValidation)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	fields := verr.Fields
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestCaptcha(t *testing.T) {
	s := NewCaptchaService()
	re := regexp.MustCompile(`^(\d) ([+-]) (\d)$`)
	for i := 0; i < 50; i++ {
		question, answer := s.GenerateMathProblem()
		m := re.FindStringSubmatch(question)
		require.NotNil(t, m, question)
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[3])
		if m[2] == "+" {
			assert.Equal(t, a+b, answer)
		} else {
			assert.Equal(t, a-b, answer)
			assert.GreaterOrEqual(t, answer, 0)
		}
		assert.True(t, CheckCaptcha(" "+strconv.Itoa(answer)+" ", answer))
	}

	assert.False(t, CheckCaptcha("", 0))
	assert.False(t, CheckCaptcha("cero", 0))
	assert.False(t, CheckCaptcha("4", 5))
}
