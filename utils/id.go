package utils

import (
	"github.com/segmentio/ksuid"
)

// GenerateID 生成按时间排序的会话ID
func GenerateID() string {
	return ksuid.New().String()
}

// ValidID 检查字符串是否为合法的会话ID
func ValidID(id string) bool {
	_, err := ksuid.Parse(id)
	return err == nil
}
