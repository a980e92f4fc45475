package cache

import (
	"path/filepath"
	"strings"
)

const (
	// HashLength 是 SHA-256 十六进制摘要的长度。
	HashLength = 64

	fsNamespace = "detcache"
	fsKVDir     = "kv-cache"
)

// ValidateHash 校验 hash 为 64 位小写十六进制，非法输入在进入分片逻辑前被拒绝。
func ValidateHash(hash string) error {
	if len(hash) != HashLength {
		return ErrInvalidHash
	}
	for i := 0; i < len(hash); i++ {
		c := hash[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return ErrInvalidHash
		}
	}
	return nil
}

// shardSegments 将 hash 切分为 <aa>/<bb>/<rest>，调用方需保证 hash 已通过 ValidateHash。
func shardSegments(hash string) (string, string, string) {
	return hash[0:2], hash[2:4], hash[4:]
}

// FilePath 返回文件系统后端的存储位置：<root>/detcache/kv-cache/<aa>/<bb>/<rest>。
func FilePath(root, hash string) string {
	first, second, rest := shardSegments(hash)
	return filepath.Join(root, fsNamespace, fsKVDir, first, second, rest)
}

// ObjectKey 返回对象存储的 key：<prefix>/<aa>/<bb>/<rest>，prefix 为空时不带前导斜杠。
func ObjectKey(prefix, hash string) string {
	first, second, rest := shardSegments(hash)
	key := first + "/" + second + "/" + rest
	if p := strings.Trim(prefix, "/"); p != "" {
		return p + "/" + key
	}
	return key
}
