package synth

// mixStereoScalar accumulates one rendered mono voice buffer into a
// stereo int32 accumulation buffer, pan-scaled by lvol/rvol (0..255).
// This is the teacher's mixChannelsStereo_Scalar shape — accumulate a
// source buffer into an interleaved stereo destination at per-channel
// volume — generalized from a fixed-point-resampled PCM source
// (pos/epos/dr advancing through an []int8 sample) to an
// already-rate-matched synthesized []float32 buffer, since every Voice
// in this package renders directly at the output sample rate.
func mixStereoScalar(mono []float32, lvol, rvol int, buffer []int32) {
	for i, s := range mono {
		sd := int32(s * 32767)
		buffer[i*2+0] += sd * int32(lvol) / 255
		buffer[i*2+1] += sd * int32(rvol) / 255
	}
}

// mixMonoScalar is the single-volume (no pan split) variant, used when
// a channel has no StereoPanner capability.
func mixMonoScalar(mono []float32, vol int, buffer []int32) {
	for i, s := range mono {
		sd := int32(s * 32767)
		buffer[i*2+0] += sd * int32(vol) / 255
		buffer[i*2+1] += sd * int32(vol) / 255
	}
}
