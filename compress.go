package walstream

import "github.com/klauspost/compress/zstd"

// newZstdFrameEncoder builds a zstd encoder with the same construction
// the teacher uses for entry compression (client.go's
// openDataFileWithConfig): default speed, single-threaded, since a
// sender's CopyData payloads are already small and frequent enough
// that encoder-side concurrency would only add scheduling overhead.
func newZstdFrameEncoder() (*zstd.Encoder, error) {
	return zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1))
}

// compressFrame compresses src into a freshly allocated buffer whose
// initial capacity is len(src) (EncodeAll grows it if the output is
// larger), the same EncodeAll pattern the teacher relies on for
// whole-entry compression.
func compressFrame(enc *zstd.Encoder, src []byte) []byte {
	return enc.EncodeAll(src, make([]byte, 0, len(src)))
}
