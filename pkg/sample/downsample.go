package sample

// DownsampleSamples reduces samples to at most maxPoints for display. The
// samples are split into maxPoints/2 buckets and each bucket contributes its
// slowest and fastest sample in time order, so short speed spikes and
// reversals survive.
// Destination-based: reuses dst if it has sufficient capacity, otherwise allocates new.
func DownsampleSamples(dst []Sample, samples []Sample, maxPoints int) []Sample {
	if len(samples) <= maxPoints {
		if cap(dst) >= len(samples) {
			dst = dst[:len(samples)]
			copy(dst, samples)
			return dst
		}
		result := make([]Sample, len(samples))
		copy(result, samples)
		return result
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0] // Reset length but keep capacity
	} else {
		dst = make([]Sample, 0, maxPoints)
	}

	buckets := maxPoints / 2
	if buckets == 0 {
		return append(dst, samples[len(samples)-1])
	}
	step := float64(len(samples)) / float64(buckets)

	for b := range buckets {
		lo := int(float64(b) * step)
		hi := int(float64(b+1) * step)
		if hi > len(samples) {
			hi = len(samples)
		}
		if lo >= hi {
			continue
		}

		minIdx, maxIdx := lo, lo
		for i := lo + 1; i < hi; i++ {
			if samples[i].Speed < samples[minIdx].Speed {
				minIdx = i
			}
			if samples[i].Speed > samples[maxIdx].Speed {
				maxIdx = i
			}
		}

		switch {
		case minIdx == maxIdx:
			dst = append(dst, samples[minIdx])
		case minIdx < maxIdx:
			dst = append(dst, samples[minIdx], samples[maxIdx])
		default:
			dst = append(dst, samples[maxIdx], samples[minIdx])
		}
	}

	return dst
}

// DownsampleValues downsamples a slice of values to a maximum number of points
// by decimation.
// Destination-based: reuses dst if it has sufficient capacity, otherwise allocates new.
func DownsampleValues(dst []float64, values []float64, maxPoints int) []float64 {
	if len(values) <= maxPoints {
		if cap(dst) >= len(values) {
			dst = dst[:len(values)]
			copy(dst, values)
			return dst
		}
		result := make([]float64, len(values))
		copy(result, values)
		return result
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]float64, 0, maxPoints)
	}

	step := float64(len(values)) / float64(maxPoints)
	for i := range maxPoints {
		idx := int(float64(i) * step)
		if idx < len(values) {
			dst = append(dst, values[idx])
		}
	}

	return dst
}
