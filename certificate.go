// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"reflect"

	"go.mozilla.org/pkcs7"
)

// The options for the WIN_CERTIFICATE Revision member.
const (
	WinCertRevision1_0 = 0x0100
	WinCertRevision2_0 = 0x0200
)

// The options for the WIN_CERTIFICATE CertificateType member.
const (
	WinCertTypeX509           = 0x0001
	WinCertTypePKCSSignedData = 0x0002
	WinCertTypeReserved1      = 0x0003
	WinCertTypeTSStackSigned  = 0x0004
)

// ErrSecurityDataDirInvalid is reported when the certificate header in the
// security directory is malformed.
var ErrSecurityDataDirInvalid = errors.New("pe: invalid certificate header in security directory")

// WinCertificate is the WIN_CERTIFICATE header preceding the PKCS#7 blob in
// the certificate table.
type WinCertificate struct {
	Length          uint32 `json:"length"`
	Revision        uint16 `json:"revision"`
	CertificateType uint16 `json:"certificate_type"`
}

// CertInfo holds the signer fields rcedit surfaces when it detects an
// existing Authenticode signature — just enough for the "editing resources
// will invalidate the existing signature" warning to name the signer,
// not a trust decision. This repo never verifies the chain of trust, unlike
// the teacher's parseSecurityDirectory (pe's Non-goal: "signing and
// checksum details beyond re-invoking the collaborator").
type CertInfo struct {
	Issuer       string `json:"issuer"`
	Subject      string `json:"subject"`
	SerialNumber string `json:"serial_number"`
}

// Certificate is the parsed IMAGE_DIRECTORY_ENTRY_SECURITY contents.
type Certificate struct {
	Header WinCertificate `json:"header"`
	Info   CertInfo       `json:"info"`
	Raw    []byte         `json:"-"`
}

// parseSecurityDirectory reads the WIN_CERTIFICATE/PKCS#7 blob referenced by
// the certificate data directory, for signature *detection* only — it never
// verifies the chain of trust (dropped from the teacher's
// parseSecurityDirectory: no system root loading, no Authentihash
// recomputation). Dual-signed binaries carry more than one WIN_CERTIFICATE
// entry back to back, 8-byte aligned; we only need to know one exists and
// who signed the first, so only the first entry is read.
func (pe *File) parseSecurityDirectory(rva, size uint32) error {
	if pe.opts.SkipSignatureCheck {
		return nil
	}

	certHeader := WinCertificate{}
	certSize := uint32(binary.Size(certHeader))
	fileOffset := rva

	if err := pe.structUnpack(&certHeader, fileOffset, certSize); err != nil {
		return ErrOutsideBoundary
	}
	if fileOffset+certHeader.Length > pe.size || certHeader.Length == 0 {
		return ErrSecurityDataDirInvalid
	}

	certContent := pe.data[fileOffset+certSize : fileOffset+certHeader.Length]
	pe.HasCertificate = true
	pe.Certificates = Certificate{Header: certHeader, Raw: append([]byte(nil), certContent...)}

	pkcs, err := pkcs7.Parse(certContent)
	if err != nil {
		return err
	}
	pe.IsSigned = true

	info := CertInfo{}
	serialNumber := pkcs.Signers[0].IssuerAndSerialNumber.SerialNumber
	for _, cert := range pkcs.Certificates {
		if !reflect.DeepEqual(cert.SerialNumber, serialNumber) {
			continue
		}
		info.SerialNumber = hex.EncodeToString(cert.SerialNumber.Bytes())
		info.Issuer = cert.Issuer.CommonName
		info.Subject = cert.Subject.CommonName
		break
	}
	pe.Certificates.Info = info
	return nil
}

// SignatureState summarizes whether an existing Authenticode signature was
// detected, for the warning rcupdate.Updater.Load emits when it opens an
// already-signed binary for resource editing.
type SignatureState struct {
	Signed bool
	Signer string
}

// SignatureState reports the detected signature state after Parse.
func (pe *File) SignatureState() SignatureState {
	if !pe.IsSigned {
		return SignatureState{}
	}
	return SignatureState{Signed: true, Signer: pe.Certificates.Info.Subject}
}
