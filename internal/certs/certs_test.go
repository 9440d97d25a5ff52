package certs

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(t *testing.T, s *Store) *x509.Certificate {
	t.Helper()
	cert, err := s.Certificate()
	require.NoError(t, err)
	require.Len(t, cert.Certificate, 1)
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return parsed
}

func TestStoreCertificate(t *testing.T) {
	tests := []struct {
		setup      func(t *testing.T, s *Store)
		name       string
		regenerate bool
	}{
		{
			name:       "creates when missing",
			setup:      func(*testing.T, *Store) {},
			regenerate: true,
		},
		{
			name: "reuses a valid pair",
			setup: func(t *testing.T, s *Store) {
				t.Helper()
				_, err := s.Certificate()
				require.NoError(t, err)
			},
		},
		{
			name: "replaces garbage files",
			setup: func(t *testing.T, s *Store) {
				t.Helper()
				require.NoError(t, os.MkdirAll(s.dir, 0o700))
				require.NoError(t, os.WriteFile(s.certFile, []byte("not a cert"), 0o600))
				require.NoError(t, os.WriteFile(s.keyFile, []byte("not a key"), 0o600))
			},
			regenerate: true,
		},
		{
			name: "renews an expiring pair",
			setup: func(t *testing.T, s *Store) {
				t.Helper()
				s.validity = time.Hour
				_, err := s.Certificate()
				require.NoError(t, err)
				s.validity = DefaultValidity
			},
			regenerate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(filepath.Join(t.TempDir(), "certs"))
			tt.setup(t, s)

			var before []byte
			if raw, err := os.ReadFile(s.CertFile()); err == nil {
				before = raw
			}

			cert := leaf(t, s)
			assert.Equal(t, "SpendWise", cert.Subject.Organization[0])
			require.NoError(t, cert.VerifyHostname("localhost"))
			assert.True(t, cert.NotAfter.After(time.Now().Add(300*24*time.Hour)))

			after, err := os.ReadFile(s.CertFile())
			require.NoError(t, err)
			if tt.regenerate {
				assert.NotEqual(t, before, after)
			} else {
				assert.Equal(t, before, after)
			}

			info, err := os.Stat(s.keyFile)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
		})
	}
}
