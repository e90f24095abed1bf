package audio

import (
	"fmt"
	"math"
)

const (
	// InputSampleRate is the fixed microphone capture rate.
	InputSampleRate = 16000

	// OutputSampleRate is the fixed rate of synthesized audio from the
	// remote service.
	OutputSampleRate = 24000

	// CaptureBufferSize is the number of samples per capture frame.
	CaptureBufferSize = 4096

	// Visualization gains. Tunable presentation constants, not a
	// perceptual calibration.
	inputVolumeGain  = 5
	outputVolumeGain = 3

	// Output loudness is sampled sparsely for efficiency.
	outputRMSStride = 10
)

// Frame is one wire-ready encoded audio frame with its transport metadata.
type Frame struct {
	Data       []byte
	MIMEType   string
	SampleRate int
}

// EncodeFrame converts a block of floating-point samples in [-1,1] into
// 16-bit little-endian PCM tagged with its mime-type metadata. Deterministic
// and side-effect free.
func EncodeFrame(samples []float32, sampleRate int) Frame {
	data := make([]byte, 2*len(samples))
	for i, s := range samples {
		n := int32(s * 32768)
		if n > math.MaxInt16 {
			n = math.MaxInt16
		} else if n < math.MinInt16 {
			n = math.MinInt16
		}
		data[2*i] = byte(n)
		data[2*i+1] = byte(n >> 8)
	}
	return Frame{
		Data:       data,
		MIMEType:   fmt.Sprintf("audio/pcm;rate=%d", sampleRate),
		SampleRate: sampleRate,
	}
}

// DecodePCM16 converts 16-bit little-endian PCM bytes back into samples.
// An odd byte count indicates a malformed chunk.
func DecodePCM16(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm chunk has odd length %d", len(data))
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
	}
	return samples, nil
}

// InputRMS computes the normalized loudness of a capture frame:
// sqrt(mean(s^2)) amplified for visualization and clamped to [0,1].
func InputRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	return clamp01(rms * inputVolumeGain)
}

// OutputRMS computes the normalized loudness of a decoded playback chunk,
// sampling every tenth sample for efficiency.
func OutputRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	var n int
	for i := 0; i < len(samples); i += outputRMSStride {
		s := float64(samples[i]) / 32768
		sum += s * s
		n++
	}
	if n == 0 {
		return 0
	}
	rms := math.Sqrt(sum / float64(n))
	return clamp01(rms * outputVolumeGain)
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
