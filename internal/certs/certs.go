// Package certs keeps a self-signed localhost certificate for the bank-link page.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// DefaultValidity is the lifetime of a generated certificate.
const DefaultValidity = 365 * 24 * time.Hour

// renewBefore regenerates certificates this close to expiry.
const renewBefore = 24 * time.Hour

// Store loads and creates the certificate pair in a directory.
type Store struct {
	now      func() time.Time
	dir      string
	certFile string
	keyFile  string
	validity time.Duration
}

// NewStore keeps localhost.crt and localhost.key in dir.
func NewStore(dir string) *Store {
	return &Store{
		dir:      dir,
		certFile: filepath.Join(dir, "localhost.crt"),
		keyFile:  filepath.Join(dir, "localhost.key"),
		validity: DefaultValidity,
		now:      time.Now,
	}
}

// Certificate returns the stored certificate, generating a new one when it
// is missing, unreadable, expiring or not valid for localhost.
func (s *Store) Certificate() (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
	if err == nil && s.verify(cert) == nil {
		return cert, nil
	}
	return s.generate()
}

// CertFile returns the certificate path, for users who want to trust it.
func (s *Store) CertFile() string {
	return s.certFile
}

func (s *Store) generate() (tls.Certificate, error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial: %w", err)
	}

	now := s.now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"SpendWise"}, CommonName: "localhost"},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(s.validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to encode key: %w", err)
	}

	if err := writePEM(s.certFile, "CERTIFICATE", der); err != nil {
		return tls.Certificate{}, err
	}
	if err := writePEM(s.keyFile, "EC PRIVATE KEY", keyDER); err != nil {
		return tls.Certificate{}, err
	}
	return tls.LoadX509KeyPair(s.certFile, s.keyFile)
}

func (s *Store) verify(cert tls.Certificate) error {
	if len(cert.Certificate) == 0 {
		return errors.New("no certificates found")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}
	now := s.now()
	if now.Before(leaf.NotBefore) || now.Add(renewBefore).After(leaf.NotAfter) {
		return fmt.Errorf("certificate outside its validity window")
	}
	return leaf.VerifyHostname("localhost")
}

func writePEM(path, blockType string, der []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
