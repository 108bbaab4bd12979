package performance

// LogicalVolume returns the bytes a run asked the engine to store and to
// return. Writes count key and value, reads count the value only.
func LogicalVolume(operations, keySize, valueSize int, wrote, read bool) (written, readBytes uint64) {
	if operations <= 0 {
		return 0, 0
	}
	if wrote {
		written = uint64(operations) * uint64(keySize+valueSize)
	}
	if read {
		readBytes = uint64(operations) * uint64(valueSize)
	}
	return written, readBytes
}

// Amplify fills the amplification factors of m from its physical counters
// and on-disk size. A factor whose logical denominator is zero stays zero.
func Amplify(m *ResourceMetrics, logicalWritten, logicalRead uint64) {
	m.WriteAmplification = ratio(m.BytesWritten, logicalWritten)
	m.ReadAmplification = ratio(m.BytesRead, logicalRead)
	m.SpaceAmplification = ratio(m.DiskBytes, logicalWritten)
}

func ratio(num, den uint64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
