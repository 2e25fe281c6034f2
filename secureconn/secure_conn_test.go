// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package secureconn

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selfSigned returns a PEM encoded self-signed certificate and its key
func selfSigned(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "etcd.local"},
		DNSNames:              []string{"etcd.local"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func TestSecureConn(t *testing.T) {
	certPEM, keyPEM := selfSigned(t)

	t.Run("With a root CA and a client certificate", func(t *testing.T) {
		conn, err := NewSecureConnFromPEMBlocks(certPEM, keyPEM, certPEM)
		require.NoError(t, err)

		config := conn.WithServerName("etcd.local").SecureClient()
		assert.NotNil(t, config.RootCAs)
		assert.Len(t, config.Certificates, 1)
		assert.Equal(t, "etcd.local", config.ServerName)
		assert.Equal(t, uint16(tls.VersionTLS12), config.MinVersion)
	})
	t.Run("With a root CA only", func(t *testing.T) {
		conn, err := NewSecureConnFromPEMBlocks(certPEM, nil, nil)
		require.NoError(t, err)
		config := conn.SecureClient()
		assert.NotNil(t, config.RootCAs)
		assert.Empty(t, config.Certificates)
	})
	t.Run("With an invalid root CA", func(t *testing.T) {
		_, err := NewSecureConnFromPEMBlocks([]byte("garbage"), nil, nil)
		require.Error(t, err)
	})
	t.Run("With a certificate missing its key", func(t *testing.T) {
		_, err := NewSecureConnFromPEMBlocks(nil, nil, certPEM)
		require.Error(t, err)
	})
	t.Run("With a mismatched key", func(t *testing.T) {
		_, otherKey := selfSigned(t)
		_, err := NewSecureConnFromPEMBlocks(nil, otherKey, certPEM)
		require.Error(t, err)
	})
	t.Run("From files", func(t *testing.T) {
		dir := t.TempDir()
		caFile := filepath.Join(dir, "ca.pem")
		keyFile := filepath.Join(dir, "key.pem")
		require.NoError(t, os.WriteFile(caFile, certPEM, 0o600))
		require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))

		conn, err := LoadFiles(caFile, caFile, keyFile)
		require.NoError(t, err)
		assert.Len(t, conn.SecureClient().Certificates, 1)

		conn, err = LoadFiles("", "", "")
		require.NoError(t, err)
		assert.Nil(t, conn.SecureClient().RootCAs)

		_, err = LoadFiles(filepath.Join(dir, "missing.pem"), "", "")
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}
