package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/dep2p/go-bridge/pkg/types"
)

// certValidity 自签名证书有效期
const certValidity = 180 * 24 * time.Hour

// Certificate 用身份私钥签发自签名证书
//
// 证书公钥就是节点公钥，对端从证书中直接得到 PeerID。
func (i *Identity) Certificate() (tls.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: i.id.String(),
		},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, i.PublicKey(), i.priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("创建证书失败: %w", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  i.priv,
	}, nil
}

// ServerTLSConfig 生成监听端 TLS 配置
//
// alpns 在每次握手时调用，返回当前接受的 ALPN 列表，
// 这样监听开始后仍可以追加协议（Router 注册处理器时）。
// 入站连接必须出示证书，PeerID 从证书公钥得到。
func (i *Identity) ServerTLSConfig(alpns func() []string) (*tls.Config, error) {
	cert, err := i.Certificate()
	if err != nil {
		return nil, err
	}

	base := &tls.Config{
		Certificates:           []tls.Certificate{cert},
		ClientAuth:             tls.RequireAnyClientCert,
		InsecureSkipVerify:     true,
		VerifyPeerCertificate:  verifyAnyPeer,
		MinVersion:             tls.VersionTLS13,
		NextProtos:             alpns(),
		SessionTicketsDisabled: true,
	}
	base.GetConfigForClient = func(*tls.ClientHelloInfo) (*tls.Config, error) {
		cfg := base.Clone()
		cfg.GetConfigForClient = nil
		cfg.NextProtos = alpns()
		return cfg, nil
	}
	return base, nil
}

// ClientTLSConfig 生成拨号端 TLS 配置
//
// 握手时校验对端证书公钥等于 expected，ALPN 只提供一个。
// expected 必须是有效的节点 ID。
func (i *Identity) ClientTLSConfig(expected types.PeerID, alpn string) (*tls.Config, error) {
	if expected.IsEmpty() {
		return nil, fmt.Errorf("%w: empty expected peer", types.ErrInvalidPeerID)
	}
	cert, err := i.Certificate()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates:          []tls.Certificate{cert},
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifyPeerCertificate(expected),
		MinVersion:            tls.VersionTLS13,
		NextProtos:            []string{alpn},
		ServerName:            "bridge",
	}, nil
}

// verifyPeerCertificate 校验对端证书并要求公钥等于 expected
func verifyPeerCertificate(expected types.PeerID) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		id, err := certificatePeerID(rawCerts)
		if err != nil {
			return err
		}
		if id != expected {
			return fmt.Errorf("%w: expected %s, got %s", ErrPeerIDMismatch, expected.ShortString(), id.ShortString())
		}
		return nil
	}
}

// verifyAnyPeer 监听端使用：接受任何有效证书，身份在握手后读取
func verifyAnyPeer(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	_, err := certificatePeerID(rawCerts)
	return err
}

// certificatePeerID 校验自签名证书并返回其中的节点 ID
//
// 自签名证书没有 CA 可以验证，身份完全由证书公钥决定：
//  1. 证书公钥必须是可用的 Ed25519 公钥
//  2. 证书签名必须由该公钥产生
//  3. 证书在有效期内
//
// 证书不是 CA，CheckSignatureFrom 会因缺少 KeyUsageCertSign 失败，
// 所以直接校验 TBS 部分的签名。
func certificatePeerID(rawCerts [][]byte) (types.PeerID, error) {
	if len(rawCerts) == 0 {
		return types.EmptyPeerID, ErrNoPeerCertificate
	}
	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return types.EmptyPeerID, fmt.Errorf("解析证书失败: %w", err)
	}

	id, err := peerIDFromCertificate(cert)
	if err != nil {
		return types.EmptyPeerID, err
	}
	if err := cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature); err != nil {
		return types.EmptyPeerID, fmt.Errorf("证书自签名无效: %w", err)
	}

	now := time.Now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return types.EmptyPeerID, fmt.Errorf("证书不在有效期内: %v - %v", cert.NotBefore, cert.NotAfter)
	}
	return id, nil
}

// PeerIDFromConnectionState 从 TLS 连接状态中提取对端 PeerID
func PeerIDFromConnectionState(state tls.ConnectionState) (types.PeerID, error) {
	if len(state.PeerCertificates) == 0 {
		return types.EmptyPeerID, ErrNoPeerCertificate
	}
	return peerIDFromCertificate(state.PeerCertificates[0])
}

func peerIDFromCertificate(cert *x509.Certificate) (types.PeerID, error) {
	pub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return types.EmptyPeerID, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, cert.PublicKey)
	}
	return types.PeerIDFromPublicKey(pub)
}
