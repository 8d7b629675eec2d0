// Package utils contains small helpers shared by the codec packages.
package utils

// AlignUp rounds v up to the next multiple of align.
func AlignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// AlignDown rounds v down to a multiple of align.
func AlignDown(v, align int) int {
	if align <= 1 {
		return v
	}
	return v / align * align
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// InRange reports whether lo <= v <= hi.
func InRange(v, lo, hi int) bool {
	return v >= lo && v <= hi
}

// GCD returns the greatest common divisor of a and b.
func GCD(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ReduceRational reduces num/den to lowest terms and, if either term still exceeds max, returns
// the closest fraction whose terms fit. The sign is carried on the numerator.
func ReduceRational(num, den, max int64) (int64, int64) {
	if den == 0 {
		return num, den
	}
	sign := int64(1)
	if (num < 0) != (den < 0) {
		sign = -1
	}
	if num < 0 {
		num = -num
	}
	if den < 0 {
		den = -den
	}
	if g := GCD(num, den); g > 1 {
		num /= g
		den /= g
	}
	if num <= max && den <= max {
		return sign * num, den
	}

	// Continued fraction expansion, keeping the last convergent that fits.
	a0n, a0d := int64(0), int64(1)
	a1n, a1d := int64(1), int64(0)
	n, d := num, den
	for d != 0 {
		x := n / d
		nextN := x*a1n + a0n
		nextD := x*a1d + a0d
		if nextN > max || nextD > max {
			if a1n != 0 {
				x = (max - a0n) / a1n
			}
			if a1d != 0 {
				if xd := (max - a0d) / a1d; xd < x {
					x = xd
				}
			}
			semiN := x*a1n + a0n
			semiD := x*a1d + a0d
			if semiD != 0 && closer(num, den, semiN, semiD, a1n, a1d) {
				a1n, a1d = semiN, semiD
			}
			break
		}
		a0n, a0d = a1n, a1d
		a1n, a1d = nextN, nextD
		n, d = d, n-x*d
	}
	if a1d == 0 {
		return sign * max, 1
	}
	return sign * a1n, a1d
}

// closer reports whether an/ad is strictly closer to num/den than bn/bd.
func closer(num, den, an, ad, bn, bd int64) bool {
	if bd == 0 {
		return true
	}
	ea := absDiff(num*ad, an*den) * bd
	eb := absDiff(num*bd, bn*den) * ad
	return ea < eb
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
