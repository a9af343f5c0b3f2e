package motion

import "math"

// ExtractFeatures reduces a buffer snapshot to the nine-feature vector
// used by the classifier. All statistics run over the full snapshot;
// standard deviation is population (divide by N, not N-1) throughout.
func ExtractFeatures(samples []Sample, samplingRateHz int) FeatureVector {
	if len(samples) == 0 {
		return FeatureVector{}
	}

	accMagnitudes := make([]float64, len(samples))
	gyroMagnitudes := make([]float64, len(samples))
	verticalAcc := make([]float64, len(samples))

	for i, s := range samples {
		accMagnitudes[i] = s.Acc.Magnitude()
		gyroMagnitudes[i] = s.Gyro.Magnitude()
		verticalAcc[i] = s.Acc.Y
	}

	accMean, accStd := meanAndStd(accMagnitudes)
	gyroMean, gyroStd := meanAndStd(gyroMagnitudes)
	verticalMean, verticalStd := meanAndStd(verticalAcc)

	return FeatureVector{
		AccMean:         accMean,
		AccStd:          accStd,
		AccVariance:     accStd * accStd,
		GyroMean:        gyroMean,
		GyroStd:         gyroStd,
		VerticalAccMean: verticalMean,
		VerticalAccStd:  verticalStd,
		StepFrequency:   stepFrequency(accMagnitudes, accMean, samplingRateHz),
		TiltAngle:       tiltAngle(samples),
		SampleCount:     len(samples),
	}
}

// meanAndStd computes the mean and population standard deviation of a
// series. A constant series has standard deviation exactly 0.
func meanAndStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sumSquaredDiff float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}
	variance := sumSquaredDiff / float64(len(values))

	return mean, math.Sqrt(variance)
}

// stepFrequency estimates steps per second from zero-crossings of the
// accelerometer magnitude around its own mean. Each step cycle
// produces two crossings. Returns 0 for fewer than 10 samples.
func stepFrequency(magnitudes []float64, mean float64, samplingRateHz int) float64 {
	if len(magnitudes) < 10 || samplingRateHz <= 0 {
		return 0
	}

	crossings := 0
	for i := 1; i < len(magnitudes); i++ {
		prev := magnitudes[i-1] - mean
		curr := magnitudes[i] - mean
		if prev*curr < 0 {
			crossings++
		}
	}

	steps := float64(crossings) / 2.0
	duration := float64(len(magnitudes)) / float64(samplingRateHz)

	return steps / duration
}

// tiltAngle computes the average angle in degrees between the
// accelerometer vector and the vertical axis. A zero-magnitude sample
// contributes angle 0 to the average.
func tiltAngle(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}

	sum := 0.0
	for _, s := range samples {
		magnitude := s.Acc.Magnitude()
		if magnitude == 0 {
			continue
		}

		ratio := s.Acc.Y / magnitude
		if ratio > 1.0 {
			ratio = 1.0
		} else if ratio < -1.0 {
			ratio = -1.0
		}

		sum += math.Acos(ratio)
	}

	return sum / float64(len(samples)) * 180.0 / math.Pi
}
