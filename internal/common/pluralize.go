// Package common: pluralize.go содержит функции склонения русских
// числительных и форматирования сумм.
package common

import "fmt"

// pluralize выбирает форму слова для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
func pluralize(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizePoints возвращает форму слова «балл».
//
//	PluralizePoints(1)  → "балл"
//	PluralizePoints(3)  → "балла"
//	PluralizePoints(11) → "баллов"
func PluralizePoints(n int64) string {
	return pluralize(n, "балл", "балла", "баллов")
}

// PluralizeCoins возвращает форму слова «монета».
func PluralizeCoins(n int64) string {
	return pluralize(n, "монета", "монеты", "монет")
}

// PluralizeDays возвращает форму слова «день».
func PluralizeDays(n int) string {
	return pluralize(int64(n), "день", "дня", "дней")
}

// FormatPoints форматирует баланс в читабельную строку.
// Пример: FormatPoints(2350) → "2 350 баллов"
func FormatPoints(points int64) string {
	return fmt.Sprintf("%s %s", FormatNumber(points), PluralizePoints(points))
}

// FormatCoins форматирует сумму в монетах CAMLY.
func FormatCoins(coins int64) string {
	return fmt.Sprintf("%s %s CAMLY", FormatNumber(coins), PluralizeCoins(coins))
}

// FormatPointsAmount создаёт строку вида "+100 баллов" или "-50 баллов".
func FormatPointsAmount(amount int64) string {
	if amount >= 0 {
		return "+" + FormatPoints(amount)
	}
	return FormatPoints(amount)
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s %03d", FormatNumber(n/1000), n%1000)
}
