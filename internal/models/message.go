package models

import "time"

// ReadingMessage 接入通道上的归一化读数消息
// MQTT 桥接和 Streams 消费共用同一格式
type ReadingMessage struct {
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// ToReading 转换为读数模型
// 调用方需要先校验 Kind 合法性
func (m *ReadingMessage) ToReading() Reading {
	return Reading{
		UserID:    m.UserID,
		Kind:      SignalKind(m.Kind),
		Value:     m.Value,
		Timestamp: m.Timestamp,
		Source:    m.Source,
	}
}
