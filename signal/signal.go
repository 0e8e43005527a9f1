// Package signal provides an API to manipulate digital signals. It allows to:
//   - allocate non-interleaved float32 buffers
//   - interleave buffers into device layout
//   - convert bit depth for int signals
//   - track channels holding a constant value
package signal

import (
	"math"
	"time"

	"github.com/viterin/vek/vek32"
)

// Float32 is a non-interleaved float32 signal, indexed [channel][frame].
type Float32 [][]float32

// InterInt is an interleaved int signal.
type InterInt struct {
	Data        []int
	NumChannels int
	BitDepth
}

// ConstantMask has one bit per channel. The bit is set when the whole
// channel block is a single repeated sample.
type ConstantMask uint64

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)

	// MaxChannels is the number of channels a ConstantMask can describe.
	MaxChannels = 64
)

// BitDepth contains values required for int-to-float and backward conversion.
type BitDepth int

// divider is used when int to float conversion is done.
func (bitDepth BitDepth) divider() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth24:
		return 1<<23 - 1
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// multiplier is used when float to int conversion is done.
func (bitDepth BitDepth) multiplier() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8 - 1
	case BitDepth16:
		return math.MaxInt16 - 1
	case BitDepth24:
		return 1<<23 - 2
	case BitDepth32:
		return math.MaxInt32 - 1
	default:
		return 1
	}
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// Alloc returns an empty buffer of specified dimensions.
func Alloc(numChannels, frames int) Float32 {
	result := make([][]float32, numChannels)
	for i := range result {
		result[i] = make([]float32, frames)
	}
	return result
}

// NumChannels returns number of channels in this buffer.
func (floats Float32) NumChannels() int {
	return len(floats)
}

// Size returns number of frames in this buffer.
func (floats Float32) Size() int {
	if len(floats) == 0 {
		return 0
	}
	return len(floats[0])
}

// Clear sets all samples to zero.
func (floats Float32) Clear() {
	for i := range floats {
		vek32.Zeros_Into(floats[i], len(floats[i]))
	}
}

// Interleave writes the buffer into interleaved destination. Channels
// missing in the buffer are written as silence.
func (floats Float32) Interleave(dst []float32, numChannels int) {
	frames := len(dst) / numChannels
	for ch := 0; ch < numChannels; ch++ {
		if ch >= len(floats) {
			for i := 0; i < frames; i++ {
				dst[i*numChannels+ch] = 0
			}
			continue
		}
		src := floats[ch]
		for i := 0; i < frames && i < len(src); i++ {
			dst[i*numChannels+ch] = src[i]
		}
	}
}

// Broadcast fills the channel with a single value.
func Broadcast(dst []float32, v float32) {
	vek32.Zeros_Into(dst, len(dst))
	if v != 0 {
		vek32.AddNumber_Inplace(dst, v)
	}
}

// IsConstant reports whether all samples of the channel are equal.
func IsConstant(ch []float32) bool {
	for i := 1; i < len(ch); i++ {
		if ch[i] != ch[0] {
			return false
		}
	}
	return true
}

// Has reports whether the channel bit is set.
func (m ConstantMask) Has(ch int) bool {
	return m&(1<<uint(ch)) != 0
}

// Set returns mask with the channel bit set.
func (m ConstantMask) Set(ch int) ConstantMask {
	return m | 1<<uint(ch)
}

// Clear returns mask with the channel bit cleared.
func (m ConstantMask) Clear(ch int) ConstantMask {
	return m &^ (1 << uint(ch))
}

// AsFloat32 converts interleaved int signal to float32.
func (ints InterInt) AsFloat32() Float32 {
	if ints.Data == nil || ints.NumChannels == 0 {
		return nil
	}
	floats := make([][]float32, ints.NumChannels)
	bufSize := int(math.Ceil(float64(len(ints.Data)) / float64(ints.NumChannels)))

	// determine the divider for bit depth conversion
	divider := float32(ints.BitDepth.divider())

	for i := range floats {
		floats[i] = make([]float32, bufSize)
		pos := 0
		for j := i; j < len(ints.Data); j = j + ints.NumChannels {
			floats[i][pos] = float32(ints.Data[j]) / divider
			pos++
		}
	}
	return floats
}

// InterleavedAsInt converts interleaved float32 samples to interleaved ints
// of provided bit depth. Destination is reused when it has enough capacity.
func InterleavedAsInt(floats []float32, bitDepth BitDepth, dst []int) []int {
	if cap(dst) < len(floats) {
		dst = make([]int, len(floats))
	}
	dst = dst[:len(floats)]
	multiplier := float32(bitDepth.multiplier())
	for i, v := range floats {
		switch {
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		dst[i] = int(v * multiplier)
	}
	return dst
}
