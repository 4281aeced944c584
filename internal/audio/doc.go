// Package audio handles audio file decoding and chunk preparation for
// streaming. It implements WAV parsing for 16-bit mono PCM, duration-based
// chunk sizing aligned to sample boundaries, and real-time pacing of audio
// sources.
package audio
