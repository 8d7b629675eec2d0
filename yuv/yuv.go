// Package yuv holds the CPU kernels used when the raster accelerator cannot serve a conversion.
// Widths are in samples per component, heights in rows, strides in bytes.
package yuv

import "encoding/binary"

// CopyPlane copies height rows of rowBytes bytes between two pitched planes.
func CopyPlane(src []byte, srcStride int, dst []byte, dstStride int, rowBytes, height int) {
	if srcStride == dstStride && srcStride == rowBytes {
		copy(dst[:rowBytes*height], src[:rowBytes*height])
		return
	}
	for y := 0; y < height; y++ {
		copy(dst[y*dstStride:y*dstStride+rowBytes], src[y*srcStride:y*srcStride+rowBytes])
	}
}

// SplitUV deinterleaves an 8-bit UV plane into separate U and V planes.
func SplitUV(src []byte, srcStride int, dstU []byte, strideU int, dstV []byte, strideV int, width, height int) {
	for y := 0; y < height; y++ {
		s := src[y*srcStride : y*srcStride+2*width]
		u := dstU[y*strideU : y*strideU+width]
		v := dstV[y*strideV : y*strideV+width]
		for x := range u {
			u[x] = s[2*x]
			v[x] = s[2*x+1]
		}
	}
}

// SplitUV16 deinterleaves a 16-bit little endian UV plane.
func SplitUV16(src []byte, srcStride int, dstU []byte, strideU int, dstV []byte, strideV int, width, height int) {
	for y := 0; y < height; y++ {
		s := src[y*srcStride : y*srcStride+4*width]
		u := dstU[y*strideU : y*strideU+2*width]
		v := dstV[y*strideV : y*strideV+2*width]
		for x := 0; x < width; x++ {
			binary.LittleEndian.PutUint16(u[2*x:], binary.LittleEndian.Uint16(s[4*x:]))
			binary.LittleEndian.PutUint16(v[2*x:], binary.LittleEndian.Uint16(s[4*x+2:]))
		}
	}
}

// HalfRows returns the row count after a 2:1 vertical downscale.
func HalfRows(height int) int {
	return (height + 1) >> 1
}

// avgRows returns the rounded mean of rows 2*y and 2*y+1, or row 2*y alone on the last odd row.
func avgRows(src []byte, srcStride, srcHeight, y, i int) byte {
	a := src[2*y*srcStride+i]
	if 2*y+1 >= srcHeight {
		return a
	}
	b := src[(2*y+1)*srcStride+i]
	return byte((int(a) + int(b) + 1) >> 1)
}

// ScaleUVHalfVertical halves an interleaved 8-bit UV plane vertically by averaging row pairs.
// width is in UV pairs and srcHeight in source rows.
func ScaleUVHalfVertical(src []byte, srcStride int, dst []byte, dstStride int, width, srcHeight int) {
	for y := 0; y < HalfRows(srcHeight); y++ {
		d := dst[y*dstStride : y*dstStride+2*width]
		for i := range d {
			d[i] = avgRows(src, srcStride, srcHeight, y, i)
		}
	}
}

// SplitUVHalfVertical halves an interleaved 8-bit UV plane vertically and deinterleaves it in one
// pass. The result equals ScaleUVHalfVertical followed by SplitUV.
func SplitUVHalfVertical(src []byte, srcStride int, dstU []byte, strideU int, dstV []byte, strideV int,
	width, srcHeight int,
) {
	for y := 0; y < HalfRows(srcHeight); y++ {
		u := dstU[y*strideU : y*strideU+width]
		v := dstV[y*strideV : y*strideV+width]
		for x := range u {
			u[x] = avgRows(src, srcStride, srcHeight, y, 2*x)
			v[x] = avgRows(src, srcStride, srcHeight, y, 2*x+1)
		}
	}
}
