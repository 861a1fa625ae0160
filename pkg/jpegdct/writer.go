package jpegdct

import (
	"bytes"
	"fmt"

	"github.com/kalashnikxvxiii-collab/StegVault/pkg/carrier"
)

// Encode serializes the image back into a standalone JPEG. Preserved APPn
// and COM segments and the original quantization tables are written
// verbatim; entropy coding always uses the standard Huffman tables.
// Restart markers from the source are not carried over.
func (img *Image) Encode() ([]byte, error) {
	if img.Coeff == nil || len(img.Coeff.Planes) != len(img.comps) {
		return nil, fmt.Errorf("jpegdct: coefficient planes do not match components")
	}
	mcuW, mcuH, err := img.checkGeometry()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write([]byte{0xFF, mSOI})
	for _, seg := range img.preserved {
		buf.Write(seg)
	}
	img.writeDQT(&buf)
	img.writeSOF(&buf)
	img.writeDHT(&buf)
	img.writeSOS(&buf)
	if err := img.writeScan(&buf, mcuW, mcuH); err != nil {
		return nil, err
	}
	buf.Write([]byte{0xFF, mEOI})
	return buf.Bytes(), nil
}

// checkGeometry verifies that the plane block grids still match the frame
// header, and returns the MCU grid dimensions.
func (img *Image) checkGeometry() (mcuW, mcuH int, err error) {
	if len(img.comps) == 1 {
		mcuW = ceilDiv(img.width, 8)
		mcuH = ceilDiv(img.height, 8)
		p := &img.Coeff.Planes[0]
		if p.WidthBlocks != mcuW || p.HeightBlocks != mcuH || len(p.Blocks) != mcuW*mcuH {
			return 0, 0, fmt.Errorf("jpegdct: plane 0 block grid does not match frame header")
		}
		return mcuW, mcuH, nil
	}
	hMax, vMax := 1, 1
	for _, c := range img.comps {
		if c.h > hMax {
			hMax = c.h
		}
		if c.v > vMax {
			vMax = c.v
		}
	}
	mcuW = ceilDiv(img.width, 8*hMax)
	mcuH = ceilDiv(img.height, 8*vMax)
	for i, c := range img.comps {
		p := &img.Coeff.Planes[i]
		wb := mcuW * c.h
		hb := mcuH * c.v
		if p.WidthBlocks != wb || p.HeightBlocks != hb || len(p.Blocks) != wb*hb {
			return 0, 0, fmt.Errorf("jpegdct: plane %d block grid does not match frame header", i)
		}
	}
	return mcuW, mcuH, nil
}

func (img *Image) writeDQT(buf *bytes.Buffer) {
	for tq := 0; tq < 4; tq++ {
		t := img.quant[tq]
		if t == nil || !img.quantReferenced(byte(tq)) {
			continue
		}
		payload := 1 + 64
		if t.precision == 1 {
			payload = 1 + 128
		}
		l := payload + 2
		buf.Write([]byte{0xFF, mDQT, byte(l >> 8), byte(l), t.precision<<4 | byte(tq)})
		for _, v := range t.values {
			if t.precision == 1 {
				buf.WriteByte(byte(v >> 8))
			}
			buf.WriteByte(byte(v))
		}
	}
}

func (img *Image) quantReferenced(tq byte) bool {
	for _, c := range img.comps {
		if c.tq == tq {
			return true
		}
	}
	return false
}

func (img *Image) writeSOF(buf *bytes.Buffer) {
	n := len(img.comps)
	l := 2 + 6 + 3*n
	sof := img.sof
	if sof == 0 {
		sof = mSOF0
	}
	buf.Write([]byte{
		0xFF, sof, byte(l >> 8), byte(l), 8,
		byte(img.height >> 8), byte(img.height),
		byte(img.width >> 8), byte(img.width),
		byte(n),
	})
	for _, c := range img.comps {
		buf.Write([]byte{c.id, byte(c.h<<4 | c.v), c.tq})
	}
}

func (img *Image) writeDHT(buf *bytes.Buffer) {
	emit := func(class, id byte, spec huffSpec) {
		l := 2 + 1 + 16 + len(spec.values)
		buf.Write([]byte{0xFF, mDHT, byte(l >> 8), byte(l), class<<4 | id})
		buf.Write(spec.counts[:])
		buf.Write(spec.values)
	}
	emit(0, 0, stdDCLuminance)
	emit(1, 0, stdACLuminance)
	if len(img.comps) > 1 {
		emit(0, 1, stdDCChrominance)
		emit(1, 1, stdACChrominance)
	}
}

func (img *Image) writeSOS(buf *bytes.Buffer) {
	n := len(img.comps)
	l := 2 + 1 + 2*n + 3
	buf.Write([]byte{0xFF, mSOS, byte(l >> 8), byte(l), byte(n)})
	for i, c := range img.comps {
		sel := byte(0x00)
		if i > 0 {
			sel = 0x11
		}
		buf.Write([]byte{c.id, sel})
	}
	buf.Write([]byte{0, 63, 0})
}

func (img *Image) writeScan(buf *bytes.Buffer, mcuW, mcuH int) error {
	bw := &bitWriter{buf: buf}
	dcLum := newHuffEncoder(stdDCLuminance)
	acLum := newHuffEncoder(stdACLuminance)
	dcChr := newHuffEncoder(stdDCChrominance)
	acChr := newHuffEncoder(stdACChrominance)

	pred := make([]int32, len(img.comps))
	for my := 0; my < mcuH; my++ {
		for mx := 0; mx < mcuW; mx++ {
			if len(img.comps) == 1 {
				p := &img.Coeff.Planes[0]
				blk := &p.Blocks[my*p.WidthBlocks+mx]
				if err := encodeBlock(bw, blk, dcLum, acLum, &pred[0]); err != nil {
					return err
				}
				continue
			}
			for i := range img.comps {
				c := &img.comps[i]
				dc, ac := dcLum, acLum
				if i > 0 {
					dc, ac = dcChr, acChr
				}
				p := &img.Coeff.Planes[i]
				for bv := 0; bv < c.v; bv++ {
					for bh := 0; bh < c.h; bh++ {
						by := my*c.v + bv
						bx := mx*c.h + bh
						blk := &p.Blocks[by*p.WidthBlocks+bx]
						if err := encodeBlock(bw, blk, dc, ac, &pred[i]); err != nil {
							return err
						}
					}
				}
			}
		}
	}
	bw.flush()
	return nil
}

func encodeBlock(bw *bitWriter, blk *carrier.Block, dc, ac *huffEncoder, pred *int32) error {
	diff := blk[0] - *pred
	*pred = blk[0]
	s := bitLen(diff)
	if s > 11 {
		return fmt.Errorf("jpegdct: DC difference %d out of range", diff)
	}
	if err := dc.emit(bw, byte(s)); err != nil {
		return err
	}
	if s > 0 {
		bw.write(valueBits(diff, s), s)
	}

	run := 0
	for k := 1; k < carrier.BlockSize; k++ {
		v := blk[k]
		if v == 0 {
			run++
			continue
		}
		for run >= 16 {
			if err := ac.emit(bw, 0xF0); err != nil {
				return err
			}
			run -= 16
		}
		s := bitLen(v)
		if s > 10 {
			return fmt.Errorf("jpegdct: AC coefficient %d out of range", v)
		}
		if err := ac.emit(bw, byte(run<<4|s)); err != nil {
			return err
		}
		bw.write(valueBits(v, s), s)
		run = 0
	}
	if run > 0 {
		if err := ac.emit(bw, 0x00); err != nil {
			return err
		}
	}
	return nil
}

// bitLen is the magnitude category of v: the smallest s with |v| < 2^s.
func bitLen(v int32) int {
	if v < 0 {
		v = -v
	}
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// valueBits maps v to the s magnitude bits that follow its Huffman symbol;
// negative values are offset by 2^s-1 per the entropy coding rules.
func valueBits(v int32, s int) uint32 {
	if v < 0 {
		v += 1<<uint(s) - 1
	}
	return uint32(v) & (1<<uint(s) - 1)
}

// bitWriter packs codes most significant bit first, stuffing a zero byte
// after every literal 0xFF.
type bitWriter struct {
	buf  *bytes.Buffer
	bits uint32
	n    int
}

func (bw *bitWriter) write(code uint32, count int) {
	for i := count - 1; i >= 0; i-- {
		bw.bits = bw.bits<<1 | (code>>uint(i))&1
		bw.n++
		if bw.n == 8 {
			b := byte(bw.bits)
			bw.buf.WriteByte(b)
			if b == 0xFF {
				bw.buf.WriteByte(0x00)
			}
			bw.bits = 0
			bw.n = 0
		}
	}
}

// flush pads the final partial byte with one bits.
func (bw *bitWriter) flush() {
	for bw.n != 0 {
		bw.write(1, 1)
	}
}
