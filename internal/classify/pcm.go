package classify

import (
	"encoding/binary"
	"math"

	"github.com/go-audio/audio"
)

// float32Samples normalizes a mono buffer into [-1, 1].
func float32Samples(buf *audio.IntBuffer) []float32 {
	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = 16
	}
	full := float32(math.Exp2(float64(depth - 1)))
	out := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		out[i] = float32(s) / full
	}
	return out
}

// pcm16LE converts normalized samples to little-endian signed 16-bit bytes.
func pcm16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := s * 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

func resampleLinear(in []float32, srcSR, dstSR int) []float32 {
	if srcSR == dstSR || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	ratio := float64(dstSR) / float64(srcSR)
	outLen := int(float64(len(in))*ratio + 0.9999)
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}
