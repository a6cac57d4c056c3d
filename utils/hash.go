package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash 计算字节内容的 SHA-256，作为缓存键
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
