package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt 的输入上限是 72 字节，注册请求的 binding 规则与之对齐。
const passwordHashCost = bcrypt.DefaultCost

// HashPassword 生成口令的 bcrypt 哈希。
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPasswordHash 以常数时间校验口令与哈希是否匹配。
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
