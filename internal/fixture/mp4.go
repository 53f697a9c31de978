// Package fixture builds small media files for tests.
package fixture

import (
	"github.com/colinkho/media-sub001/utils/pio"
	"github.com/nareix/joy4/format/mp4/mp4io"
)

// Video timing of built clips
const (
	VideoTimeScale      = 90000
	VideoSampleDuration = 3000
	AudioTimeScale      = 44100
	AudioSampleDuration = 1024
)

// SPS and PPS carried in the avcC of built clips
var (
	SPS = []byte{0x67, 0x42, 0x00, 0x1e, 0x95, 0xa8, 0x28}
	PPS = []byte{0x68, 0xce, 0x3c, 0x80}
	// AudioSpecificConfig is AAC LC, 44.1kHz, stereo
	AudioSpecificConfig = []byte{0x12, 0x10}
)

// AVCDecoderConfig returns an avcC payload with 4 byte nalu lengths
func AVCDecoderConfig() []byte {
	b := []byte{0x01, 0x42, 0x00, 0x1e, 0xff, 0xe1}
	b = pio.AppendU16BE(b, uint16(len(SPS)))
	b = append(b, SPS...)
	b = append(b, 0x01)
	b = pio.AppendU16BE(b, uint16(len(PPS)))
	return append(b, PPS...)
}

// VideoSample returns a length prefixed sample holding one slice of size
// payload bytes, an IDR slice when key
func VideoSample(key bool, size int, fill byte) []byte {
	nal := make([]byte, size+1)
	nal[0] = 0x41
	if key {
		nal[0] = 0x65
	}
	for i := 1; i < len(nal); i++ {
		nal[i] = fill
	}
	b := pio.AppendU32BE(nil, uint32(len(nal)))
	return append(b, nal...)
}

// MP4Options shapes a built clip
type MP4Options struct {
	// VideoSamples are AVCC samples, every KeyInterval-th one is a key frame
	VideoSamples [][]byte
	KeyInterval  int
	// AudioSamples are raw AAC frames, interleaved chunk by chunk with video
	AudioSamples [][]byte
	// MovieFirst puts moov before mdat
	MovieFirst bool
	// Brand is the major brand, isom when empty
	Brand string
}

// NewVideoSamples returns n samples with a key frame every keyInterval
func NewVideoSamples(n, keyInterval, size int) [][]byte {
	samples := make([][]byte, n)
	for i := range samples {
		samples[i] = VideoSample(i%keyInterval == 0, size, byte(i))
	}
	return samples
}

// Ftyp returns an ftyp box
func Ftyp(brand string, compatible ...string) []byte {
	b := pio.AppendU32BE(nil, uint32(16+4*len(compatible)))
	b = append(b, "ftyp"...)
	b = append(b, brand...)
	b = pio.AppendU32BE(b, 0x200)
	for _, c := range compatible {
		b = append(b, c...)
	}
	return b
}

// Box returns a box of the given type
func Box(tag string, payload []byte) []byte {
	b := pio.AppendU32BE(nil, uint32(8+len(payload)))
	b = append(b, tag...)
	return append(b, payload...)
}

// MP4 builds a progressive clip. Each track is stored as one chunk per
// sample with video and audio chunks alternating.
func MP4(opts MP4Options) []byte {
	brand := opts.Brand
	if brand == "" {
		brand = "isom"
	}
	if opts.KeyInterval <= 0 {
		opts.KeyInterval = 1
	}
	ftyp := Ftyp(brand, brand, "mp41")

	// interleave chunks in the payload
	var payload []byte
	var videoOffsets, audioOffsets []int
	for i := 0; i < len(opts.VideoSamples) || i < len(opts.AudioSamples); i++ {
		if i < len(opts.VideoSamples) {
			videoOffsets = append(videoOffsets, len(payload))
			payload = append(payload, opts.VideoSamples[i]...)
		}
		if i < len(opts.AudioSamples) {
			audioOffsets = append(audioOffsets, len(payload))
			payload = append(payload, opts.AudioSamples[i]...)
		}
	}
	mdat := Box("mdat", payload)

	movie := buildMovie(opts, videoOffsets, audioOffsets, 0)
	var mdatPayloadStart int
	if opts.MovieFirst {
		mdatPayloadStart = len(ftyp) + movie.Len() + 8
	} else {
		mdatPayloadStart = len(ftyp) + 8
	}
	movie = buildMovie(opts, videoOffsets, audioOffsets, mdatPayloadStart)
	moov := make([]byte, movie.Len())
	movie.Marshal(moov)

	out := append([]byte(nil), ftyp...)
	if opts.MovieFirst {
		out = append(out, moov...)
		return append(out, mdat...)
	}
	out = append(out, mdat...)
	return append(out, moov...)
}

func chunkOffsets(offsets []int, base int) []uint32 {
	entries := make([]uint32, len(offsets))
	for i, o := range offsets {
		entries[i] = uint32(base + o)
	}
	return entries
}

func sampleSizes(samples [][]byte) []uint32 {
	sizes := make([]uint32, len(samples))
	for i, s := range samples {
		sizes[i] = uint32(len(s))
	}
	return sizes
}

func buildMovie(opts MP4Options, videoOffsets, audioOffsets []int, base int) *mp4io.Movie {
	n := len(opts.VideoSamples)
	movie := &mp4io.Movie{
		Header: &mp4io.MovieHeader{
			TimeScale:       1000,
			Duration:        int32(n * VideoSampleDuration * 1000 / VideoTimeScale),
			PreferredRate:   1,
			PreferredVolume: 1,
		},
	}

	var sync []uint32
	for i := 0; i < n; i += opts.KeyInterval {
		sync = append(sync, uint32(i+1))
	}
	movie.Tracks = append(movie.Tracks, &mp4io.Track{
		Header: &mp4io.TrackHeader{
			TrackId:     1,
			TrackWidth:  64,
			TrackHeight: 48,
		},
		Media: &mp4io.Media{
			Header: &mp4io.MediaHeader{
				TimeScale: VideoTimeScale,
				Duration:  int32(n * VideoSampleDuration),
			},
			Handler: &mp4io.HandlerRefer{
				SubType: [4]byte{'v', 'i', 'd', 'e'},
				Name:    []byte("VideoHandler\x00"),
			},
			Info: &mp4io.MediaInfo{
				Video: &mp4io.VideoMediaInfo{Flags: 1},
				Sample: &mp4io.SampleTable{
					SampleDesc: &mp4io.SampleDesc{
						AVC1Desc: &mp4io.AVC1Desc{
							DataRefIdx:           1,
							Width:                64,
							Height:               48,
							HorizontalResolution: 72,
							VorizontalResolution: 72,
							FrameCount:           1,
							Depth:                24,
							ColorTableId:         -1,
							Conf:                 &mp4io.AVC1Conf{Data: AVCDecoderConfig()},
						},
					},
					TimeToSample: &mp4io.TimeToSample{
						Entries: []mp4io.TimeToSampleEntry{{Count: uint32(n), Duration: VideoSampleDuration}},
					},
					SampleToChunk: &mp4io.SampleToChunk{
						Entries: []mp4io.SampleToChunkEntry{{FirstChunk: 1, SamplesPerChunk: 1, SampleDescId: 1}},
					},
					SyncSample:  &mp4io.SyncSample{Entries: sync},
					ChunkOffset: &mp4io.ChunkOffset{Entries: chunkOffsets(videoOffsets, base)},
					SampleSize:  &mp4io.SampleSize{Entries: sampleSizes(opts.VideoSamples)},
				},
			},
		},
	})

	if len(opts.AudioSamples) == 0 {
		return movie
	}
	m := len(opts.AudioSamples)
	movie.Tracks = append(movie.Tracks, &mp4io.Track{
		Header: &mp4io.TrackHeader{
			TrackId: 2,
			Volume:  1,
		},
		Media: &mp4io.Media{
			Header: &mp4io.MediaHeader{
				TimeScale: AudioTimeScale,
				Duration:  int32(m * AudioSampleDuration),
			},
			Handler: &mp4io.HandlerRefer{
				SubType: [4]byte{'s', 'o', 'u', 'n'},
				Name:    []byte("SoundHandler\x00"),
			},
			Info: &mp4io.MediaInfo{
				Sound: &mp4io.SoundMediaInfo{},
				Sample: &mp4io.SampleTable{
					SampleDesc: &mp4io.SampleDesc{
						MP4ADesc: &mp4io.MP4ADesc{
							DataRefIdx:       1,
							NumberOfChannels: 2,
							SampleSize:       16,
							SampleRate:       AudioTimeScale,
							Conf: &mp4io.ElemStreamDesc{
								DecConfig: AudioSpecificConfig,
							},
						},
					},
					TimeToSample: &mp4io.TimeToSample{
						Entries: []mp4io.TimeToSampleEntry{{Count: uint32(m), Duration: AudioSampleDuration}},
					},
					SampleToChunk: &mp4io.SampleToChunk{
						Entries: []mp4io.SampleToChunkEntry{{FirstChunk: 1, SamplesPerChunk: 1, SampleDescId: 1}},
					},
					ChunkOffset: &mp4io.ChunkOffset{Entries: chunkOffsets(audioOffsets, base)},
					SampleSize:  &mp4io.SampleSize{Entries: sampleSizes(opts.AudioSamples)},
				},
			},
		},
	})
	return movie
}
