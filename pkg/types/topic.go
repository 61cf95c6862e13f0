package types

import (
	"encoding/hex"
	"errors"
)

// TopicIDSize 主题 ID 长度（字节）
const TopicIDSize = 32

// TopicID Gossip 主题标识符（固定 32 字节）
type TopicID [TopicIDSize]byte

// ErrInvalidTopicID 主题长度不是 32 字节
var ErrInvalidTopicID = errors.New("invalid topic ID: must be exactly 32 bytes")

// TopicIDFromBytes 从字节切片创建 TopicID
//
// 长度必须恰好为 32 字节，不做截断或填充。
func TopicIDFromBytes(b []byte) (TopicID, error) {
	if len(b) != TopicIDSize {
		return TopicID{}, ErrInvalidTopicID
	}
	var id TopicID
	copy(id[:], b)
	return id, nil
}

// Bytes 返回字节切片
func (t TopicID) Bytes() []byte {
	return t[:]
}

// String 返回十六进制表示
func (t TopicID) String() string {
	return hex.EncodeToString(t[:])
}

// ShortString 返回十六进制前缀（日志用）
func (t TopicID) ShortString() string {
	return hex.EncodeToString(t[:4])
}
