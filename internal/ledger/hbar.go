package ledger

import (
	"fmt"
	"strings"
)

// TinybarPerHbar is the scale of the ledger's smallest HBAR denomination.
const TinybarPerHbar = 100_000_000

const hbarDecimals = 8

// ParseAmount converts a user-facing decimal string into an integer amount
// of the smallest unit, without going through floating point. It rejects
// non-positive amounts and fractions finer than the unit allows.
func ParseAmount(raw string, decimals int) (int64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("金额不能为空")
	}
	if strings.HasPrefix(value, "-") || strings.HasPrefix(value, "+") {
		return 0, fmt.Errorf("金额不允许带符号: %q", raw)
	}

	whole := value
	frac := ""
	if idx := strings.IndexByte(value, '.'); idx >= 0 {
		whole, frac = value[:idx], value[idx+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return 0, fmt.Errorf("金额 %q 超过了最小单位精度 (%d 位)", raw, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	var result int64
	for _, digits := range []string{whole, frac} {
		for _, ch := range digits {
			if ch < '0' || ch > '9' {
				return 0, fmt.Errorf("金额 %q 不是合法的十进制数", raw)
			}
			digit := int64(ch - '0')
			if result > (1<<63-1-digit)/10 {
				return 0, fmt.Errorf("金额 %q 溢出", raw)
			}
			result = result*10 + digit
		}
	}
	if result <= 0 {
		return 0, fmt.Errorf("金额必须大于 0")
	}
	return result, nil
}

// ParseHbarToTinybar converts a user-facing HBAR amount into tinybar.
func ParseHbarToTinybar(raw string) (int64, error) {
	return ParseAmount(raw, hbarDecimals)
}

// FormatTinybar renders a tinybar amount as a human readable HBAR string.
func FormatTinybar(tinybar int64) string {
	sign := ""
	if tinybar < 0 {
		sign = "-"
		tinybar = -tinybar
	}
	whole := tinybar / TinybarPerHbar
	frac := tinybar % TinybarPerHbar
	if frac == 0 {
		return fmt.Sprintf("%s%d ℏ", sign, whole)
	}
	text := strings.TrimRight(fmt.Sprintf("%08d", frac), "0")
	return fmt.Sprintf("%s%d.%s ℏ", sign, whole, text)
}
