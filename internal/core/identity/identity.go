// Package identity 管理节点身份
//
// 节点身份就是一把 Ed25519 密钥：公钥即 PeerID，
// 私钥用于签发 QUIC 握手使用的自签名证书。
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dep2p/go-bridge/pkg/lib/log"
	"github.com/dep2p/go-bridge/pkg/types"
)

var logger = log.Logger("core/identity")

// PEM 类型常量
const (
	pemTypePKCS8          = "PRIVATE KEY"
	pemTypeEd25519Private = "ED25519 PRIVATE KEY"
)

// Identity 节点身份
type Identity struct {
	priv ed25519.PrivateKey
	id   types.PeerID
}

// Generate 生成新的随机身份
func Generate() (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("生成 Ed25519 密钥失败: %w", err)
	}
	return FromPrivateKey(priv)
}

// FromPrivateKey 从 Ed25519 私钥创建身份
func FromPrivateKey(priv ed25519.PrivateKey) (*Identity, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeySize
	}
	id, err := types.PeerIDFromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Identity{priv: priv, id: id}, nil
}

// FromSeed 从 32 字节种子确定性地创建身份
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidKeySize
	}
	return FromPrivateKey(ed25519.NewKeyFromSeed(seed))
}

// ID 返回节点 ID
func (i *Identity) ID() types.PeerID {
	return i.id
}

// PrivateKey 返回私钥
func (i *Identity) PrivateKey() ed25519.PrivateKey {
	return i.priv
}

// PublicKey 返回公钥
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.priv.Public().(ed25519.PublicKey)
}

// ============================================================================
//                              PEM 编解码
// ============================================================================

// MarshalPEM 以 PKCS#8 PEM 格式编码私钥
func (i *Identity) MarshalPEM() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(i.priv)
	if err != nil {
		return nil, fmt.Errorf("编码私钥失败: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePKCS8, Bytes: der}), nil
}

// ParsePEM 从 PEM 数据解析身份
//
// 支持 PKCS#8 ("PRIVATE KEY") 与原始 Ed25519 ("ED25519 PRIVATE KEY") 两种格式。
func ParsePEM(data []byte) (*Identity, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEM
	}

	switch block.Type {
	case pemTypePKCS8:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPEM, err)
		}
		priv, ok := key.(ed25519.PrivateKey)
		if !ok {
			return nil, ErrUnsupportedKeyType
		}
		return FromPrivateKey(priv)
	case pemTypeEd25519Private:
		switch len(block.Bytes) {
		case ed25519.PrivateKeySize:
			return FromPrivateKey(ed25519.PrivateKey(block.Bytes))
		case ed25519.SeedSize:
			return FromSeed(block.Bytes)
		default:
			return nil, ErrInvalidKeySize
		}
	default:
		return nil, ErrUnsupportedKeyType
	}
}

// ============================================================================
//                              文件持久化
// ============================================================================

// Save 保存私钥到文件
//
// 临时文件 + rename，权限 0600。
func (i *Identity) Save(path string) error {
	data, err := i.MarshalPEM()
	if err != nil {
		return err
	}
	return atomicWriteFile(path, data, 0600)
}

// Load 从文件加载身份
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return ParsePEM(data)
}

// LoadOrCreate 加载身份，文件不存在时生成并保存
func LoadOrCreate(path string) (*Identity, error) {
	id, err := Load(path)
	if err == nil {
		return id, nil
	}
	if err != ErrKeyNotFound {
		return nil, err
	}

	id, err = Generate()
	if err != nil {
		return nil, err
	}
	if err := id.Save(path); err != nil {
		return nil, fmt.Errorf("保存身份失败: %w", err)
	}
	logger.Info("已生成新身份", "peer", id.ID().ShortString(), "path", path)
	return id, nil
}

// atomicWriteFile 原子写文件
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".key-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
