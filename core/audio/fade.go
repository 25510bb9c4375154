package audio

import "math"

// GainFloor is the minimum gain used by fade ramps. Exponential ramps are
// undefined at zero, so fades start and end here instead of at silence.
const GainFloor = 1e-4

// FadeIn ramps the first rampSamples samples of 16-bit PCM from GainFloor up
// to unity gain, in place. The ramp is exponential.
func FadeIn(pcm []byte, rampSamples int) {
	n := len(pcm) / 2
	if rampSamples > n {
		rampSamples = n
	}
	for i := 0; i < rampSamples; i++ {
		putSample(pcm, i, scaleSample(sampleAt(pcm, i), rampGain(i, rampSamples, true)))
	}
}

// FadeOut ramps the last rampSamples samples of 16-bit PCM from unity gain
// down to GainFloor, in place.
func FadeOut(pcm []byte, rampSamples int) {
	n := len(pcm) / 2
	if rampSamples > n {
		rampSamples = n
	}
	for i := 0; i < rampSamples; i++ {
		j := n - rampSamples + i
		putSample(pcm, j, scaleSample(sampleAt(pcm, j), rampGain(i, rampSamples, false)))
	}
}

// Crossfade mixes the end of one chunk into the start of the next: tail is
// ramped down, head is ramped up, and the two are summed sample by sample.
// The result is as long as the longer of the two inputs.
func Crossfade(tail, head []byte) []byte {
	tailSamples := len(tail) / 2
	headSamples := len(head) / 2

	n := max(tailSamples, headSamples)
	mixed := make([]byte, n*2)
	for i := 0; i < n; i++ {
		sum := 0
		if i < tailSamples {
			sum += int(scaleSample(sampleAt(tail, i), rampGain(i, tailSamples, false)))
		}
		if i < headSamples {
			sum += int(scaleSample(sampleAt(head, i), rampGain(i, headSamples, true)))
		}
		putSample(mixed, i, clampSample(sum))
	}
	return mixed
}

// rampGain computes the exponential gain at step i of an n-step ramp, rising
// from GainFloor to unity when up is true and falling back when it is not.
func rampGain(i, n int, up bool) float64 {
	if n <= 1 {
		if up {
			return 1
		}
		return GainFloor
	}
	p := float64(i) / float64(n-1)
	if up {
		p = 1 - p
	}
	return math.Pow(GainFloor, p)
}

func scaleSample(s int16, gain float64) int16 {
	return clampSample(int(math.Round(float64(s) * gain)))
}

func clampSample(v int) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
