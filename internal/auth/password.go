package auth

import (
	"strings"
	"unicode"
)

// パスワード長の制約。
const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// specialChars はパスワードに要求される記号文字の集合。
const specialChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// commonPasswords は使用を禁止するよく使われるパスワードの一覧。
// 照合は小文字化して行う。
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password123": {},
	"12345678":    {},
	"123456789":   {},
	"qwerty123":   {},
	"abc12345":    {},
	"password1":   {},
	"iloveyou":    {},
	"admin123":    {},
	"welcome123":  {},
	"letmein123":  {},
	"monkey123":   {},
}

// PasswordStrength はパスワードの強度を表す。
type PasswordStrength int

const (
	// PasswordWeak は要件を満たさない、または推測されやすいパスワード。
	PasswordWeak PasswordStrength = iota
	// PasswordMedium は要件を満たす標準的なパスワード。
	PasswordMedium
	// PasswordStrong は十分な長さと文字種を持つパスワード。
	PasswordStrong
)

// String はPasswordStrengthの文字列表現を返す。
func (s PasswordStrength) String() string {
	switch s {
	case PasswordStrong:
		return "strong"
	case PasswordMedium:
		return "medium"
	default:
		return "weak"
	}
}

// ValidatePassword はパスワードの要件を検証し、満たしていない理由の一覧を返す。
// 空のスライスが返る場合、パスワードは有効。
// 要件:
//   - 8文字以上128文字以下
//   - 大文字・小文字・数字・記号を各1文字以上含む
//   - 空白文字を含まない
//   - よく使われるパスワードではない
func ValidatePassword(password string) []string {
	var reasons []string

	if len(password) < minPasswordLength {
		reasons = append(reasons, "パスワードは8文字以上にしてください")
	}
	if len(password) > maxPasswordLength {
		reasons = append(reasons, "パスワードは128文字以下にしてください")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial, hasSpace bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(specialChars, r):
			hasSpecial = true
		}
		if unicode.IsSpace(r) {
			hasSpace = true
		}
	}

	if !hasUpper {
		reasons = append(reasons, "大文字を1文字以上含めてください")
	}
	if !hasLower {
		reasons = append(reasons, "小文字を1文字以上含めてください")
	}
	if !hasDigit {
		reasons = append(reasons, "数字を1文字以上含めてください")
	}
	if !hasSpecial {
		reasons = append(reasons, "記号を1文字以上含めてください")
	}
	if hasSpace {
		reasons = append(reasons, "空白文字は使用できません")
	}

	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		reasons = append(reasons, "よく使われるパスワードは使用できません")
	}

	return reasons
}

// PasswordStrengthOf はパスワードの強度を判定する。
// 要件を満たさないパスワードは常にPasswordWeak。
// 要件を満たした上で12文字以上かつ全文字種を含む場合はPasswordStrong。
func PasswordStrengthOf(password string) PasswordStrength {
	if len(ValidatePassword(password)) > 0 {
		return PasswordWeak
	}
	if len(password) >= 12 {
		return PasswordStrong
	}
	return PasswordMedium
}
