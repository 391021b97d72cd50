package datagateway

// NormalizeRange resolves the start and stop offsets of LRange against a list
// of length n, the way Redis does. ok is false when the range is empty.
func NormalizeRange(n, start, stop int64) (from, to int64, ok bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}
