package partition

import "strconv"

// selectNth partially orders values so that values[n] holds the element
// that would be at index n in sorted order, and returns it.
// Elements before n are not greater and elements after n are not smaller.
// n is clamped to the valid range; values must not be empty.
func selectNth(values []float64, n int) float64 {
	n = min(max(n, 0), len(values)-1)
	lo, hi := 0, len(values)-1
	for lo < hi {
		// Median of three keeps sorted and reversed input linear.
		mid := lo + (hi-lo)/2
		if values[mid] < values[lo] {
			values[mid], values[lo] = values[lo], values[mid]
		}
		if values[hi] < values[lo] {
			values[hi], values[lo] = values[lo], values[hi]
		}
		if values[hi] < values[mid] {
			values[hi], values[mid] = values[mid], values[hi]
		}
		pivot := values[mid]
		i, j := lo, hi
		for i <= j {
			for values[i] < pivot {
				i++
			}
			for values[j] > pivot {
				j--
			}
			if i <= j {
				values[i], values[j] = values[j], values[i]
				i++
				j--
			}
		}
		switch {
		case n <= j:
			hi = j
		case n >= i:
			lo = i
		default:
			return values[n]
		}
	}
	return values[n]
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
