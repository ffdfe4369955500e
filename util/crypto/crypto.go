package crypto

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashKey 生成密钥的 bcrypt 哈希，可直接填入 node.api_key 或 admin.api_key
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckKey 校验密钥。配置中为 bcrypt 哈希时按哈希比较，否则按明文常量时间比较
func CheckKey(expected, key string) bool {
	if expected == "" || key == "" {
		return false
	}
	if strings.HasPrefix(expected, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(expected), []byte(key)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(key)) == 1
}
