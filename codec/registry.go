// Package codec holds what the decoder and encoder share: the codec registry, error kinds,
// engine/heap/raster ownership and the throughput trackers.
package codec

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/rkmpp/mpp"
	"go.viam.com/rkmpp/pixfmt"
)

// ID identifies a codec.
type ID int

// Codec ids.
const (
	IDNone ID = iota
	IDH263
	IDH264
	IDHEVC
	IDAV1
	IDVP8
	IDVP9
	IDMPEG1
	IDMPEG2
	IDMPEG4
)

var idNames = map[ID]string{
	IDH263:  "h263",
	IDH264:  "h264",
	IDHEVC:  "hevc",
	IDAV1:   "av1",
	IDVP8:   "vp8",
	IDVP9:   "vp9",
	IDMPEG1: "mpeg1",
	IDMPEG2: "mpeg2",
	IDMPEG4: "mpeg4",
}

func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return fmt.Sprintf("codec(%d)", int(id))
}

// ParseID resolves a codec name.
func ParseID(name string) (ID, error) {
	for id, n := range idNames {
		if n == name {
			return id, nil
		}
	}
	return IDNone, errors.Wrapf(ErrBadInput, "unknown codec %q", name)
}

// Coding maps the codec to the engine coding type. MPEG-1 streams go through the MPEG-2 path.
func (id ID) Coding() mpp.CodingType {
	switch id {
	case IDH263:
		return mpp.CodingH263
	case IDH264:
		return mpp.CodingAVC
	case IDHEVC:
		return mpp.CodingHEVC
	case IDAV1:
		return mpp.CodingAV1
	case IDVP8:
		return mpp.CodingVP8
	case IDVP9:
		return mpp.CodingVP9
	case IDMPEG1, IDMPEG2:
		return mpp.CodingMPEG2
	case IDMPEG4:
		return mpp.CodingMPEG4
	}
	return mpp.CodingUnused
}

// Kind says whether an entry decodes or encodes.
type Kind int

// Entry kinds.
const (
	KindDecoder Kind = iota
	KindEncoder
)

func (k Kind) String() string {
	if k == KindEncoder {
		return "encoder"
	}
	return "decoder"
}

// Entry is one registered codec implementation.
type Entry struct {
	ID   ID
	Kind Kind
	// Name is "<codec>_rkmpp_<kind>".
	Name string
	// BSF is the bitstream filter the demuxer should apply, if any.
	BSF          string
	PixelFormats []pixfmt.PixelFormat
}

// Coding is the engine coding type.
func (e Entry) Coding() mpp.CodingType {
	return e.ID.Coding()
}

// Accepts reports whether the entry handles the pixel format.
func (e Entry) Accepts(p pixfmt.PixelFormat) bool {
	return lo.Contains(e.PixelFormats, p)
}

func decoderEntry(id ID, bsf string) Entry {
	return Entry{
		ID: id, Kind: KindDecoder, Name: id.String() + "_rkmpp_decoder", BSF: bsf,
		PixelFormats: pixfmt.DecoderOutputs,
	}
}

func encoderEntry(id ID) Entry {
	return Entry{
		ID: id, Kind: KindEncoder, Name: id.String() + "_rkmpp_encoder",
		PixelFormats: pixfmt.EncoderInputs,
	}
}

var registry = []Entry{
	decoderEntry(IDH263, ""),
	decoderEntry(IDH264, "h264_mp4toannexb"),
	decoderEntry(IDHEVC, "hevc_mp4toannexb"),
	decoderEntry(IDAV1, ""),
	decoderEntry(IDVP8, ""),
	decoderEntry(IDVP9, ""),
	decoderEntry(IDMPEG1, ""),
	decoderEntry(IDMPEG2, ""),
	decoderEntry(IDMPEG4, "mpeg4_unpack_bframes"),
	encoderEntry(IDH264),
	encoderEntry(IDHEVC),
	encoderEntry(IDVP8),
}

// Entries returns every registered entry.
func Entries() []Entry {
	return append([]Entry(nil), registry...)
}

// Decoders returns the decoder entries.
func Decoders() []Entry {
	return lo.Filter(registry, func(e Entry, _ int) bool { return e.Kind == KindDecoder })
}

// Encoders returns the encoder entries.
func Encoders() []Entry {
	return lo.Filter(registry, func(e Entry, _ int) bool { return e.Kind == KindEncoder })
}

// Find returns the entry for id and kind, or ErrBadInput.
func Find(id ID, kind Kind) (Entry, error) {
	e, ok := lo.Find(registry, func(e Entry) bool { return e.ID == id && e.Kind == kind })
	if !ok {
		return Entry{}, errors.Wrapf(ErrBadInput, "no %s for %s", kind, id)
	}
	return e, nil
}

// ByName returns the entry with the given name, or ErrBadInput.
func ByName(name string) (Entry, error) {
	e, ok := lo.Find(registry, func(e Entry) bool { return e.Name == name })
	if !ok {
		return Entry{}, errors.Wrapf(ErrBadInput, "no codec named %q", name)
	}
	return e, nil
}
