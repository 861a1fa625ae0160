package jpegdct

import (
	"fmt"
	"io"

	"github.com/kalashnikxvxiii-collab/StegVault/pkg/carrier"
)

// Decode parses a baseline JPEG and returns its quantized coefficient
// planes along with the header state needed to re-encode them.
func Decode(data []byte) (*Image, error) {
	d := &decoder{data: data, img: &Image{}}
	if err := d.run(); err != nil {
		return nil, err
	}
	return d.img, nil
}

type decoder struct {
	data    []byte
	pos     int
	img     *Image
	huff    [2][4]*huffDecoder
	seenSOF bool
}

func (d *decoder) run() error {
	if len(d.data) < 2 || d.data[0] != 0xFF || d.data[1] != mSOI {
		return fmt.Errorf("jpegdct: missing SOI marker")
	}
	d.pos = 2
	for {
		m, err := d.nextMarker()
		if err != nil {
			return err
		}
		switch {
		case m == mSOF0 || m == mSOF1:
			if err := d.parseSOF(m); err != nil {
				return err
			}
		case m == mSOF2:
			return fmt.Errorf("%w: progressive image", ErrUnsupported)
		case m >= 0xC3 && m <= 0xCF && m != mDHT:
			return fmt.Errorf("%w: SOF marker %#02x", ErrUnsupported, m)
		case m == mDHT:
			if err := d.parseDHT(); err != nil {
				return err
			}
		case m == mDQT:
			if err := d.parseDQT(); err != nil {
				return err
			}
		case m == mDRI:
			if err := d.parseDRI(); err != nil {
				return err
			}
		case m >= mAPP0 && m <= mAPP15, m == mCOM:
			if err := d.preserveSegment(m); err != nil {
				return err
			}
		case m == mSOS:
			if err := d.parseScan(); err != nil {
				return err
			}
			return d.expectEOI()
		case m == mEOI:
			return fmt.Errorf("jpegdct: no image data before EOI")
		default:
			return fmt.Errorf("jpegdct: unexpected marker %#02x", m)
		}
	}
}

// nextMarker consumes any fill bytes and returns the next marker code.
func (d *decoder) nextMarker() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, io.ErrUnexpectedEOF
	}
	if d.data[d.pos] != 0xFF {
		return 0, fmt.Errorf("jpegdct: expected marker at offset %d", d.pos)
	}
	for d.pos < len(d.data) && d.data[d.pos] == 0xFF {
		d.pos++
	}
	if d.pos >= len(d.data) {
		return 0, io.ErrUnexpectedEOF
	}
	m := d.data[d.pos]
	d.pos++
	if m == 0x00 {
		return 0, fmt.Errorf("jpegdct: stuffed byte outside entropy data")
	}
	return m, nil
}

// segment reads one marker segment payload, excluding the length field.
func (d *decoder) segment() ([]byte, error) {
	if d.pos+2 > len(d.data) {
		return nil, io.ErrUnexpectedEOF
	}
	l := int(d.data[d.pos])<<8 | int(d.data[d.pos+1])
	if l < 2 {
		return nil, fmt.Errorf("jpegdct: segment length %d too small", l)
	}
	if d.pos+l > len(d.data) {
		return nil, io.ErrUnexpectedEOF
	}
	seg := d.data[d.pos+2 : d.pos+l]
	d.pos += l
	return seg, nil
}

func (d *decoder) preserveSegment(m byte) error {
	seg, err := d.segment()
	if err != nil {
		return err
	}
	l := len(seg) + 2
	raw := make([]byte, 0, 4+len(seg))
	raw = append(raw, 0xFF, m, byte(l>>8), byte(l))
	raw = append(raw, seg...)
	d.img.preserved = append(d.img.preserved, raw)
	return nil
}

func (d *decoder) parseSOF(m byte) error {
	if d.seenSOF {
		return fmt.Errorf("jpegdct: multiple SOF markers")
	}
	seg, err := d.segment()
	if err != nil {
		return err
	}
	if len(seg) < 6 {
		return fmt.Errorf("jpegdct: short SOF segment")
	}
	if seg[0] != 8 {
		return fmt.Errorf("%w: %d-bit sample precision", ErrUnsupported, seg[0])
	}
	height := int(seg[1])<<8 | int(seg[2])
	width := int(seg[3])<<8 | int(seg[4])
	n := int(seg[5])
	if width == 0 || height == 0 {
		return fmt.Errorf("jpegdct: zero image dimension")
	}
	if n < 1 || n > 4 {
		return fmt.Errorf("%w: %d components", ErrUnsupported, n)
	}
	if len(seg) != 6+3*n {
		return fmt.Errorf("jpegdct: SOF length mismatch")
	}
	for i := 0; i < n; i++ {
		id := seg[6+3*i]
		hv := seg[7+3*i]
		ch, cv := int(hv>>4), int(hv&0x0F)
		if ch < 1 || ch > 4 || cv < 1 || cv > 4 {
			return fmt.Errorf("jpegdct: sampling factor %dx%d out of range", ch, cv)
		}
		tq := seg[8+3*i]
		if tq > 3 {
			return fmt.Errorf("jpegdct: quantization table selector %d out of range", tq)
		}
		for _, c := range d.img.comps {
			if c.id == id {
				return fmt.Errorf("jpegdct: duplicate component id %d", id)
			}
		}
		d.img.comps = append(d.img.comps, component{id: id, h: ch, v: cv, tq: tq})
	}
	d.img.width = width
	d.img.height = height
	d.img.sof = m
	d.seenSOF = true
	return nil
}

func (d *decoder) parseDQT() error {
	seg, err := d.segment()
	if err != nil {
		return err
	}
	for off := 0; off < len(seg); {
		pqtq := seg[off]
		off++
		pq, tq := pqtq>>4, pqtq&0x0F
		if pq > 1 || tq > 3 {
			return fmt.Errorf("jpegdct: bad DQT selector byte %#02x", pqtq)
		}
		t := &quantTable{precision: pq}
		if pq == 0 {
			if off+64 > len(seg) {
				return fmt.Errorf("jpegdct: short DQT segment")
			}
			for i := 0; i < 64; i++ {
				t.values[i] = uint16(seg[off+i])
			}
			off += 64
		} else {
			if off+128 > len(seg) {
				return fmt.Errorf("jpegdct: short DQT segment")
			}
			for i := 0; i < 64; i++ {
				t.values[i] = uint16(seg[off+2*i])<<8 | uint16(seg[off+2*i+1])
			}
			off += 128
		}
		d.img.quant[tq] = t
	}
	return nil
}

func (d *decoder) parseDHT() error {
	seg, err := d.segment()
	if err != nil {
		return err
	}
	for off := 0; off < len(seg); {
		if off+17 > len(seg) {
			return fmt.Errorf("jpegdct: short DHT segment")
		}
		tcth := seg[off]
		tc, th := tcth>>4, tcth&0x0F
		if tc > 1 || th > 3 {
			return fmt.Errorf("jpegdct: bad DHT selector byte %#02x", tcth)
		}
		var counts [16]byte
		copy(counts[:], seg[off+1:off+17])
		total := 0
		for _, n := range counts {
			total += int(n)
		}
		if off+17+total > len(seg) {
			return fmt.Errorf("jpegdct: short DHT segment")
		}
		values := append([]byte(nil), seg[off+17:off+17+total]...)
		hd, err := newHuffDecoder(counts, values)
		if err != nil {
			return err
		}
		d.huff[tc][th] = hd
		off += 17 + total
	}
	return nil
}

func (d *decoder) parseDRI() error {
	seg, err := d.segment()
	if err != nil {
		return err
	}
	if len(seg) != 2 {
		return fmt.Errorf("jpegdct: DRI length mismatch")
	}
	d.img.restartInterval = int(seg[0])<<8 | int(seg[1])
	return nil
}

func (d *decoder) parseScan() error {
	if !d.seenSOF {
		return fmt.Errorf("jpegdct: SOS before SOF")
	}
	seg, err := d.segment()
	if err != nil {
		return err
	}
	if len(seg) < 1 {
		return fmt.Errorf("jpegdct: short SOS segment")
	}
	ns := int(seg[0])
	if len(seg) != 1+2*ns+3 {
		return fmt.Errorf("jpegdct: SOS length mismatch")
	}
	if ns != len(d.img.comps) {
		return fmt.Errorf("%w: multi-scan image", ErrUnsupported)
	}
	for j := 0; j < ns; j++ {
		id := seg[1+2*j]
		tdta := seg[2+2*j]
		comp := d.findComp(id)
		if comp == nil {
			return fmt.Errorf("jpegdct: scan references unknown component %d", id)
		}
		comp.td, comp.ta = tdta>>4, tdta&0x0F
		if comp.td > 3 || comp.ta > 3 {
			return fmt.Errorf("jpegdct: bad scan table selector byte %#02x", tdta)
		}
		if d.huff[0][comp.td] == nil || d.huff[1][comp.ta] == nil {
			return fmt.Errorf("jpegdct: scan references undefined huffman table")
		}
		if d.img.quant[comp.tq] == nil {
			return fmt.Errorf("jpegdct: component references undefined quantization table")
		}
	}
	return d.decodeScan()
}

func (d *decoder) findComp(id byte) *component {
	for i := range d.img.comps {
		if d.img.comps[i].id == id {
			return &d.img.comps[i]
		}
	}
	return nil
}

func (d *decoder) decodeScan() error {
	img := d.img
	comps := img.comps
	hMax, vMax := 1, 1
	for _, c := range comps {
		if c.h > hMax {
			hMax = c.h
		}
		if c.v > vMax {
			vMax = c.v
		}
	}

	var mcuW, mcuH int
	planes := make([]carrier.Plane, len(comps))
	if len(comps) == 1 {
		mcuW = ceilDiv(img.width, 8)
		mcuH = ceilDiv(img.height, 8)
		planes[0] = carrier.Plane{
			WidthBlocks:  mcuW,
			HeightBlocks: mcuH,
			Blocks:       make([]carrier.Block, mcuW*mcuH),
		}
	} else {
		mcuW = ceilDiv(img.width, 8*hMax)
		mcuH = ceilDiv(img.height, 8*vMax)
		for i, c := range comps {
			wb := mcuW * c.h
			hb := mcuH * c.v
			planes[i] = carrier.Plane{
				WidthBlocks:  wb,
				HeightBlocks: hb,
				Blocks:       make([]carrier.Block, wb*hb),
			}
		}
	}

	br := &bitReader{data: d.data, pos: d.pos}
	pred := make([]int32, len(comps))
	rst := 0
	mcu := 0
	for my := 0; my < mcuH; my++ {
		for mx := 0; mx < mcuW; mx++ {
			if img.restartInterval > 0 && mcu > 0 && mcu%img.restartInterval == 0 {
				if err := br.restart(rst); err != nil {
					return err
				}
				rst = (rst + 1) % 8
				for i := range pred {
					pred[i] = 0
				}
			}
			if len(comps) == 1 {
				blk := &planes[0].Blocks[my*planes[0].WidthBlocks+mx]
				if err := d.decodeBlock(br, &comps[0], blk, &pred[0]); err != nil {
					return err
				}
			} else {
				for i := range comps {
					c := &comps[i]
					for bv := 0; bv < c.v; bv++ {
						for bh := 0; bh < c.h; bh++ {
							by := my*c.v + bv
							bx := mx*c.h + bh
							blk := &planes[i].Blocks[by*planes[i].WidthBlocks+bx]
							if err := d.decodeBlock(br, c, blk, &pred[i]); err != nil {
								return err
							}
						}
					}
				}
			}
			mcu++
		}
	}
	d.pos = br.pos
	img.Coeff = &carrier.Blocks{Planes: planes}
	return nil
}

func (d *decoder) decodeBlock(br *bitReader, c *component, blk *carrier.Block, pred *int32) error {
	s, err := d.huff[0][c.td].decode(br)
	if err != nil {
		return err
	}
	if s > 11 {
		return fmt.Errorf("jpegdct: DC size category %d out of range", s)
	}
	diff := int32(0)
	if s > 0 {
		v, err := br.receive(int(s))
		if err != nil {
			return err
		}
		diff = extend(v, int(s))
	}
	*pred += diff
	blk[0] = *pred

	ac := d.huff[1][c.ta]
	for k := 1; k < carrier.BlockSize; {
		rs, err := ac.decode(br)
		if err != nil {
			return err
		}
		run, size := int(rs>>4), int(rs&0x0F)
		if size == 0 {
			if run == 15 {
				k += 16
				continue
			}
			break
		}
		k += run
		if k >= carrier.BlockSize {
			return fmt.Errorf("jpegdct: AC run overflows block")
		}
		if size > 10 {
			return fmt.Errorf("jpegdct: AC size category %d out of range", size)
		}
		v, err := br.receive(size)
		if err != nil {
			return err
		}
		blk[k] = extend(v, size)
		k++
	}
	return nil
}

func (d *decoder) expectEOI() error {
	m, err := d.nextMarker()
	if err != nil {
		return err
	}
	if m != mEOI {
		return fmt.Errorf("jpegdct: expected EOI, found marker %#02x", m)
	}
	return nil
}

// bitReader reads entropy-coded data bit by bit, unstuffing the zero byte
// that follows a literal 0xFF.
type bitReader struct {
	data []byte
	pos  int
	cur  byte
	n    int
}

func (br *bitReader) bit() (int32, error) {
	if br.n == 0 {
		if br.pos >= len(br.data) {
			return 0, io.ErrUnexpectedEOF
		}
		b := br.data[br.pos]
		br.pos++
		if b == 0xFF {
			if br.pos >= len(br.data) {
				return 0, io.ErrUnexpectedEOF
			}
			if br.data[br.pos] != 0x00 {
				return 0, fmt.Errorf("jpegdct: marker %#02x inside entropy data", br.data[br.pos])
			}
			br.pos++
		}
		br.cur = b
		br.n = 8
	}
	br.n--
	return int32(br.cur>>uint(br.n)) & 1, nil
}

func (br *bitReader) receive(s int) (int32, error) {
	v := int32(0)
	for i := 0; i < s; i++ {
		b, err := br.bit()
		if err != nil {
			return 0, err
		}
		v = v<<1 | b
	}
	return v, nil
}

// restart drops padding bits and consumes the expected RSTn marker.
func (br *bitReader) restart(index int) error {
	br.n = 0
	if br.pos+2 > len(br.data) {
		return io.ErrUnexpectedEOF
	}
	if br.data[br.pos] != 0xFF || br.data[br.pos+1] != byte(mRST0+index) {
		return fmt.Errorf("jpegdct: expected restart marker %d at offset %d", index, br.pos)
	}
	br.pos += 2
	return nil
}

// extend recovers a signed value from its magnitude-category bits,
// procedure EXTEND from ITU T.81.
func extend(v int32, s int) int32 {
	if v < 1<<uint(s-1) {
		return v - 1<<uint(s) + 1
	}
	return v
}
