// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

// Package tls generates and loads the certificates that secure the frame
// bus with mutual TLS. Every host sharing a bus trusts one CA and presents
// a peer certificate signed by it, both as server and as client.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/big"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// File names inside a certs directory.
const (
	caFile = "root-ca"
	// PeerName is the name of the certificate a bus peer presents.
	PeerName = "bus"
)

// caPrefix starts the CA common name; the bus ID follows it.
const caPrefix = "frei0rhost bus CA "

// CA holds a certificate authority certificate and private key.
type CA struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// PeerCert holds a bus peer certificate and private key.
type PeerCert struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
	Name        string
}

// ServerName is the name peers verify for bus busID.
func ServerName(busID string) string {
	return "frei0rhost-" + busID
}

// GenerateCA creates a new root CA with busID embedded in its CN and in a
// frei0rhost://bus/{busID} URI SAN.
func GenerateCA(busID string) (*CA, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CA key: %w", err)
	}

	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	busURI, err := url.Parse("frei0rhost://bus/" + busID)
	if err != nil {
		return nil, fmt.Errorf("failed to create bus URI: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"frei0rhost"},
			CommonName:   caPrefix + busID,
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		URIs:                  []*url.URL{busURI},
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA certificate: %w", err)
	}

	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// GeneratePeerCert creates a certificate signed by ca, valid for both ends
// of a bus connection. It covers localhost, 127.0.0.1, ServerName(busID)
// and every extra host, IP literals included.
func GeneratePeerCert(ca *CA, busID, name string, hosts ...string) (*PeerCert, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate peer key: %w", err)
	}

	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	dnsNames := []string{"localhost", ServerName(busID)}
	ips := []net.IP{net.ParseIP("127.0.0.1")}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			ips = append(ips, ip)
		} else if h != "" {
			dnsNames = append(dnsNames, h)
		}
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"frei0rhost"},
			CommonName:   "frei0rhost-" + name,
		},
		NotBefore:   time.Now(),
		NotAfter:    time.Now().AddDate(1, 0, 0),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:    dnsNames,
		IPAddresses: ips,
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, ca.Certificate, &key.PublicKey, ca.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse peer certificate: %w", err)
	}

	return &PeerCert{Certificate: cert, PrivateKey: key, Name: name}, nil
}

func newSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial: %w", err)
	}
	return serial, nil
}

// SaveCertificates saves the CA and optionally a peer certificate to dir.
// The CA is saved as root-ca.crt and root-ca.key, the peer as {name}.crt
// and {name}.key.
func SaveCertificates(dir string, ca *CA, peer *PeerCert) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create certs directory: %w", err)
	}

	if err := saveCert(filepath.Join(dir, caFile+".crt"), ca.Certificate); err != nil {
		return fmt.Errorf("failed to save CA certificate: %w", err)
	}
	if err := saveKey(filepath.Join(dir, caFile+".key"), ca.PrivateKey); err != nil {
		return fmt.Errorf("failed to save CA key: %w", err)
	}

	if peer != nil {
		if err := saveCert(filepath.Join(dir, peer.Name+".crt"), peer.Certificate); err != nil {
			return fmt.Errorf("failed to save peer certificate: %w", err)
		}
		if err := saveKey(filepath.Join(dir, peer.Name+".key"), peer.PrivateKey); err != nil {
			return fmt.Errorf("failed to save peer key: %w", err)
		}
	}

	return nil
}

// LoadCA loads an existing CA from dir.
func LoadCA(dir string) (*CA, error) {
	cert, err := loadCertificate(filepath.Join(dir, caFile+".crt"))
	if err != nil {
		return nil, fmt.Errorf("failed to load CA certificate: %w", err)
	}

	keyPEM, err := os.ReadFile(filepath.Clean(filepath.Join(dir, caFile+".key")))
	if err != nil {
		return nil, fmt.Errorf("failed to read CA key: %w", err)
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("failed to decode CA key PEM")
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA key: %w", err)
	}

	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// BusID reads the bus ID from the CA certificate in dir.
func BusID(dir string) (string, error) {
	cert, err := loadCertificate(filepath.Join(dir, caFile+".crt"))
	if err != nil {
		return "", fmt.Errorf("failed to load CA certificate: %w", err)
	}
	cn := cert.Subject.CommonName
	id, ok := strings.CutPrefix(cn, caPrefix)
	if !ok || id == "" {
		return "", fmt.Errorf("CA CN %q does not have expected prefix %q", cn, caPrefix)
	}
	return id, nil
}

// Ensure makes sure dir holds a CA and a peer certificate. A missing CA is
// generated with a fresh bus ID; a missing peer certificate is issued by the
// existing CA, so copying root-ca.* to another machine and running Ensure
// there joins it to the same bus. It reports whether anything was written.
func Ensure(dir string, hosts ...string) (bool, error) {
	caExists, err := exists(filepath.Join(dir, caFile+".crt"))
	if err != nil {
		return false, err
	}
	peerExists, err := exists(filepath.Join(dir, PeerName+".crt"))
	if err != nil {
		return false, err
	}
	if caExists && peerExists {
		return false, nil
	}

	var (
		ca    *CA
		busID string
	)
	if caExists {
		if ca, err = LoadCA(dir); err != nil {
			return false, err
		}
		if busID, err = BusID(dir); err != nil {
			return false, err
		}
	} else {
		busID = ulid.Make().String()
		if ca, err = GenerateCA(busID); err != nil {
			return false, err
		}
	}

	peer, err := GeneratePeerCert(ca, busID, PeerName, hosts...)
	if err != nil {
		return false, err
	}
	if err := SaveCertificates(dir, ca, peer); err != nil {
		return false, err
	}
	slog.Info("frame bus certificates written", "dir", dir, "bus_id", busID, "new_ca", !caExists)
	return true, nil
}

// ServerConfig loads the mTLS configuration for serving the bus with the
// certificate called name.
func ServerConfig(dir, name string) (*cryptotls.Config, error) {
	cert, pool, err := loadPair(dir, name)
	if err != nil {
		return nil, err
	}
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   cryptotls.RequireAndVerifyClientCert,
		MinVersion:   cryptotls.VersionTLS13,
	}, nil
}

// ClientConfig loads the mTLS configuration for dialing a bus peer with
// the certificate called name. The peer must belong to the same bus.
func ClientConfig(dir, name string) (*cryptotls.Config, error) {
	cert, pool, err := loadPair(dir, name)
	if err != nil {
		return nil, err
	}
	busID, err := BusID(dir)
	if err != nil {
		return nil, err
	}
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   cryptotls.VersionTLS13,
		ServerName:   ServerName(busID),
	}, nil
}

func loadPair(dir, name string) (cryptotls.Certificate, *x509.CertPool, error) {
	cert, err := cryptotls.LoadX509KeyPair(
		filepath.Clean(filepath.Join(dir, name+".crt")),
		filepath.Clean(filepath.Join(dir, name+".key")),
	)
	if err != nil {
		return cryptotls.Certificate{}, nil, fmt.Errorf("failed to load %s certificate: %w", name, err)
	}

	caPEM, err := os.ReadFile(filepath.Clean(filepath.Join(dir, caFile+".crt")))
	if err != nil {
		return cryptotls.Certificate{}, nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return cryptotls.Certificate{}, nil, errors.New("failed to add CA certificate to pool")
	}
	return cert, pool, nil
}

func loadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to decode certificate PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

// exists treats errors other than not-exist as a reason to stop, so
// unreadable files are never overwritten.
func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
}

// saveCert saves a certificate to a PEM file.
func saveCert(path string, cert *x509.Certificate) error {
	return writePEM(path, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

// saveKey saves an ECDSA private key to a PEM file.
func saveKey(path string, key *ecdsa.PrivateKey) error {
	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}
	return writePEM(path, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})
}

func writePEM(path string, block *pem.Block) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	if err := pem.Encode(f, block); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	return nil
}
