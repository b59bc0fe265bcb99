package quant

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// decodeF16 decodes a little-endian IEEE 754 half-precision scale
// field. Every block-quantized tag stores its scale(s) this way.
func decodeF16(b []byte) float32 {
	return float16.Frombits(binary.LittleEndian.Uint16(b)).Float32()
}

func finiteNonzero(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0) && f != 0
}

// dequantizeQ4_0 decodes blockSize-element Q4_0 blocks: a F16 scale
// followed by blockSize/2 bytes of 4-bit codes centered at 8, two
// values per byte (low nibble at offset j, high nibble at j+half).
func dequantizeQ4_0(data []byte, dst []float32, blockSize int) {
	half := blockSize / 2
	stride := 2 + half
	blocks := len(data) / stride

	for b := range blocks {
		block := data[b*stride : (b+1)*stride]
		d := decodeF16(block[0:2])
		qs := block[2:]
		y := dst[b*blockSize : (b+1)*blockSize]

		for j := range half {
			x0 := float32(int8(qs[j]&0x0F)) - 8
			x1 := float32(int8(qs[j]>>4)) - 8
			y[j] = x0 * d
			y[j+half] = x1 * d
		}
	}
}

// dequantizeQ5_0 decodes blockSize-element Q5_0 blocks: a F16 scale, a
// 32-bit packed high-bit field, and blockSize/2 bytes of low 4-bit
// codes. The 5th bit of each code comes from qh.
func dequantizeQ5_0(data []byte, dst []float32, blockSize int) {
	half := blockSize / 2
	stride := 2 + 4 + half
	blocks := len(data) / stride

	for b := range blocks {
		block := data[b*stride : (b+1)*stride]
		d := decodeF16(block[0:2])
		qh := binary.LittleEndian.Uint32(block[2:6])
		qs := block[6:]
		y := dst[b*blockSize : (b+1)*blockSize]

		for j := range half {
			xh0 := uint8((qh>>uint(j))<<4) & 0x10
			xh1 := uint8(qh>>uint(j+12)) & 0x10
			x0 := float32(int32((qs[j]&0x0F)|xh0) - 16)
			x1 := float32(int32((qs[j]>>4)|xh1) - 16)
			y[j] = x0 * d
			y[j+half] = x1 * d
		}
	}
}

// dequantizeQ8_0 decodes blockSize-element Q8_0 blocks: a F16 scale
// followed by blockSize signed byte codes.
func dequantizeQ8_0(data []byte, dst []float32, blockSize int) {
	stride := 2 + blockSize
	blocks := len(data) / stride

	for b := range blocks {
		block := data[b*stride : (b+1)*stride]
		d := decodeF16(block[0:2])
		qs := block[2:]
		y := dst[b*blockSize : (b+1)*blockSize]

		for j := range blockSize {
			y[j] = float32(int8(qs[j])) * d
		}
	}
}

// getScaleMinK4 unpacks the j-th 6-bit scale and 6-bit min from a Q4_K
// superblock's 12-byte packed scales field, following the canonical
// GGUF bit layout (4 scales and 4 mins packed directly, the remaining
// 4 of each split across the high bits of the first group).
func getScaleMinK4(j int, q []byte) (sc, m uint8) {
	if j < 4 {
		sc = q[j] & 63
		m = q[j+4] & 63
	} else {
		sc = (q[j+4] & 0x0F) | ((q[j-4] >> 6) << 4)
		m = (q[j+4] >> 4) | ((q[j] >> 6) << 4)
	}
	return sc, m
}

// dequantizeQ4K decodes 256-element Q4_K superblocks: d, dmin (F16),
// 12 bytes of packed 6-bit scales/mins (8 of each), and 128 bytes of
// 4-bit codes covering 256 values.
func dequantizeQ4K(data []byte, dst []float32) {
	const stride = 2 + 2 + 12 + 128
	blocks := len(data) / stride

	for b := range blocks {
		block := data[b*stride : (b+1)*stride]
		d := decodeF16(block[0:2])
		dmin := decodeF16(block[2:4])
		scales := block[4:16]
		qs := block[16:144]
		y := dst[b*256 : (b+1)*256]

		qi := 0
		yi := 0
		for j := 0; j < 4; j++ {
			sc1, m1 := getScaleMinK4(2*j, scales)
			sc2, m2 := getScaleMinK4(2*j+1, scales)
			d1 := d * float32(sc1)
			m1f := dmin * float32(m1)
			d2 := d * float32(sc2)
			m2f := dmin * float32(m2)

			q := qs[qi : qi+32]
			for l := range 32 {
				y[yi+l] = d1*float32(q[l]&0x0F) - m1f
			}
			for l := range 32 {
				y[yi+32+l] = d2*float32(q[l]>>4) - m2f
			}

			qi += 32
			yi += 64
		}
	}
}

// dequantizeQ6K decodes 256-element Q6_K superblocks: 128 bytes of low
// 4-bit codes (ql), 64 bytes of high 2-bit codes (qh), 16 signed
// per-16-element sub-block scales, and a single F16 superblock scale.
func dequantizeQ6K(data []byte, dst []float32) {
	const stride = 128 + 64 + 16 + 2
	blocks := len(data) / stride

	for b := range blocks {
		block := data[b*stride : (b+1)*stride]
		ql := block[0:128]
		qh := block[128:192]
		sc := block[192:208]
		d := decodeF16(block[208:210])
		y := dst[b*256 : (b+1)*256]

		for n := 0; n < 256; n += 128 {
			qlSeg := ql[n/2 : n/2+64]
			qhSeg := qh[n/4 : n/4+32]
			scSeg := sc[n/16 : n/16+8]
			ySeg := y[n : n+128]

			for l := range 32 {
				is := l / 16
				q1 := int32(ql4(qlSeg[l])|(qh2(qhSeg[l], 0))) - 32
				q2 := int32(ql4(qlSeg[l+32])|(qh2(qhSeg[l], 2))) - 32
				q3 := int32(qlHigh4(qlSeg[l])|(qh2(qhSeg[l], 4))) - 32
				q4 := int32(qlHigh4(qlSeg[l+32])|(qh2(qhSeg[l], 6))) - 32

				ySeg[l] = d * float32(int8(scSeg[is+0])) * float32(q1)
				ySeg[l+32] = d * float32(int8(scSeg[is+2])) * float32(q2)
				ySeg[l+64] = d * float32(int8(scSeg[is+4])) * float32(q3)
				ySeg[l+96] = d * float32(int8(scSeg[is+6])) * float32(q4)
			}
		}
	}
}

func ql4(b byte) byte      { return b & 0x0F }
func qlHigh4(b byte) byte  { return b >> 4 }
func qh2(b byte, shift uint) byte {
	return ((b >> shift) & 3) << 4
}
