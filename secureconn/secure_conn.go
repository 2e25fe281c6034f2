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

// Package secureconn builds the TLS client configurations used to reach the
// coordination backends (etcd, Redis).
package secureconn

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// SecureConn holds the trust roots and the optional client certificate of a TLS client
type SecureConn struct {
	rootCA     *x509.CertPool
	cert       *tls.Certificate
	serverName string
}

// NewSecureConn creates a SecureConn. A nil rootCA uses the host roots and a nil cert
// disables client authentication.
func NewSecureConn(rootCA *x509.CertPool, cert *tls.Certificate) *SecureConn {
	return &SecureConn{
		rootCA: rootCA,
		cert:   cert,
	}
}

// NewSecureConnFromPEMBlocks creates a SecureConn from PEM encoded blocks.
// Empty blocks are skipped; key and cert must be given together.
func NewSecureConnFromPEMBlocks(rootCAsPEMBlock, keyPEMBlock, certPEMBlock []byte) (*SecureConn, error) {
	conn := new(SecureConn)
	if len(rootCAsPEMBlock) > 0 {
		certpool := x509.NewCertPool()
		if !certpool.AppendCertsFromPEM(rootCAsPEMBlock) {
			return nil, errors.New("no certificate found in the root CA block")
		}
		conn.rootCA = certpool
	}

	if (len(keyPEMBlock) == 0) != (len(certPEMBlock) == 0) {
		return nil, errors.New("client certificate and key must be given together")
	}
	if len(keyPEMBlock) > 0 {
		x509KeyPair, err := tls.X509KeyPair(certPEMBlock, keyPEMBlock)
		if err != nil {
			return nil, err
		}
		conn.cert = &x509KeyPair
	}
	return conn, nil
}

// LoadFiles reads the PEM files at the given paths. Empty paths are skipped.
func LoadFiles(caFile, certFile, keyFile string) (*SecureConn, error) {
	read := func(path string) ([]byte, error) {
		if path == "" {
			return nil, nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return data, nil
	}

	ca, err := read(caFile)
	if err != nil {
		return nil, err
	}
	cert, err := read(certFile)
	if err != nil {
		return nil, err
	}
	key, err := read(keyFile)
	if err != nil {
		return nil, err
	}
	return NewSecureConnFromPEMBlocks(ca, key, cert)
}

// WithServerName sets the name checked against the server certificate
func (conn *SecureConn) WithServerName(name string) *SecureConn {
	conn.serverName = name
	return conn
}

// SecureClient returns the client TLS configuration
func (conn *SecureConn) SecureClient() *tls.Config {
	config := &tls.Config{
		RootCAs:    conn.rootCA,
		ServerName: conn.serverName,
		MinVersion: tls.VersionTLS12,
	}
	if conn.cert != nil {
		config.Certificates = []tls.Certificate{*conn.cert}
	}
	return config
}
