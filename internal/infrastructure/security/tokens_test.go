package security

import (
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forgeToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestIsStructurallyValid(t *testing.T) {
	valid := forgeToken(t, jwt.MapClaims{"sub": "user-1", "exp": int64(1893456000)})

	cases := []struct {
		name  string
		token string
		want  bool
	}{
		{"well formed credential", valid, true},
		{"empty string", "", false},
		{"single word", "notatoken", false},
		{"two segments", "aaaa.bbbb", false},
		{"four segments", "aa.bb.cc.dd", false},
		{"empty middle segment", "aaaa..cccc", false},
		{"garbage segments", "aaaa.bbbb.cccc", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsStructurallyValid(tc.token))
		})
	}
}

func TestIsStructurallyValidRequiresSubjectAndExpiry(t *testing.T) {
	missingSub := forgeToken(t, jwt.MapClaims{"exp": int64(1893456000)})
	assert.False(t, IsStructurallyValid(missingSub))

	emptySub := forgeToken(t, jwt.MapClaims{"sub": "", "exp": int64(1893456000)})
	assert.False(t, IsStructurallyValid(emptySub))

	missingExp := forgeToken(t, jwt.MapClaims{"sub": "user-1"})
	assert.False(t, IsStructurallyValid(missingExp))

	stringExp := forgeToken(t, jwt.MapClaims{"sub": "user-1", "exp": "tomorrow"})
	assert.False(t, IsStructurallyValid(stringExp))
}

func TestReadClaims(t *testing.T) {
	token := forgeToken(t, jwt.MapClaims{
		"sub":   "user-42",
		"email": "jordan@example.com",
		"exp":   int64(1893456000),
	})

	claims, err := ReadClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, "jordan@example.com", claims.Email)
	assert.Equal(t, int64(1893456000), claims.Expiry)
}

func TestReadClaimsEmailOptional(t *testing.T) {
	token := forgeToken(t, jwt.MapClaims{"sub": "user-42", "exp": int64(1893456000)})

	claims, err := ReadClaims(token)
	require.NoError(t, err)
	assert.Empty(t, claims.Email)
}

func TestReadClaimsNeverVerifiesSignature(t *testing.T) {
	// Same payload signed with a different secret still decodes: the
	// backend owns signature trust, this side only inspects structure.
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-7",
		"exp": int64(1893456000),
	}).SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	claims, readErr := ReadClaims(token)
	require.NoError(t, readErr)
	assert.Equal(t, "user-7", claims.Subject)
}
