// Package validation содержит функции валидации входных данных.
package validation

import "unicode"

// IsValidCouponCode проверяет формат промокода: 3-32 символа,
// заглавные латинские буквы, цифры, дефис и подчёркивание.
func IsValidCouponCode(code string) bool {
	if len(code) < 3 || len(code) > 32 {
		return false
	}

	for _, ch := range code {
		if ch > unicode.MaxASCII {
			return false
		}
		if unicode.IsUpper(ch) || unicode.IsDigit(ch) || ch == '-' || ch == '_' {
			continue
		}
		return false
	}

	return true
}

// IsValidSlug проверяет формат адреса курса: строчные латинские буквы,
// цифры и дефисы, без дефиса в начале и в конце.
func IsValidSlug(slug string) bool {
	if slug == "" || len(slug) > 64 {
		return false
	}
	if slug[0] == '-' || slug[len(slug)-1] == '-' {
		return false
	}

	for _, ch := range slug {
		if ch >= 'a' && ch <= 'z' || ch >= '0' && ch <= '9' || ch == '-' {
			continue
		}
		return false
	}

	return true
}
