package gossip

import "errors"

// 错误定义
var (
	// ErrClosed 覆盖网络已关闭
	ErrClosed = errors.New("gossip: closed")

	// ErrTopicClosed 主题已关闭
	ErrTopicClosed = errors.New("gossip: topic closed")

	// ErrTopicAlreadyJoined 主题已订阅
	ErrTopicAlreadyJoined = errors.New("gossip: topic already joined")

	// ErrMessageTooLarge 消息过大
	ErrMessageTooLarge = errors.New("gossip: message too large")

	// ErrInvalidFrame 无法解析的帧
	ErrInvalidFrame = errors.New("gossip: invalid frame")

	// ErrAllSendsFailed 向所有邻居发送都失败
	ErrAllSendsFailed = errors.New("gossip: all sends failed")
)
