package slicer

// Slice returns the bit for a soft sample: 1 for non negative values, 0
// otherwise, or the opposite when invert is set.
func Slice(f float32, invert bool) byte {
	if invert {
		if f >= 0 {
			return 0
		}
		return 1
	}
	if f >= 0 {
		return 1
	}
	return 0
}
