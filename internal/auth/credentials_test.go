package auth

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHashPassword(t *testing.T) {
	// fixed digest format, hex encoded sha256
	assert.Equal(t,
		"c592df4a86933b92addc9842402ddf198c638ea9be58916ee6e3734e1e3152f8",
		HashPassword("pw1"),
	)
	assert.Len(t, HashPassword(""), 64)
}

func TestCheckPasswordHash_RoundTrip(t *testing.T) {
	for i := 0; i < 10; i++ {
		p := gofakeit.Password(true, true, true, true, false, 12)
		q := p + "x"
		assert.True(t, CheckPasswordHash(p, HashPassword(p)))
		assert.False(t, CheckPasswordHash(q, HashPassword(p)))
	}
}
