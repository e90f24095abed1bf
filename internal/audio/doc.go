// Package audio implements the PCM framing, loudness metering and playback
// scheduling primitives of the realtime voice pipeline. Capture frames are
// encoded to 16-bit little-endian PCM for the wire; inbound chunks are
// decoded and scheduled back-to-back on an injectable clock so playback is
// gapless and never overlaps.
package audio
