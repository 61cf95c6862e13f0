package identity

import "errors"

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrInvalidPEM 无效的 PEM 数据
	ErrInvalidPEM = errors.New("invalid PEM data")

	// ErrUnsupportedKeyType 不支持的密钥类型（只支持 Ed25519）
	ErrUnsupportedKeyType = errors.New("unsupported key type")

	// ErrInvalidKeySize 无效的密钥长度
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrKeyNotFound 密钥文件不存在
	ErrKeyNotFound = errors.New("key not found")

	// ErrNoPeerCertificate 对端未提供证书
	ErrNoPeerCertificate = errors.New("peer did not present a certificate")

	// ErrPeerIDMismatch 对端证书公钥与期望的节点 ID 不一致
	ErrPeerIDMismatch = errors.New("peer ID mismatch")
)
