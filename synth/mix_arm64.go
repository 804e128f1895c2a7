//go:build arm64

package synth

// The teacher's arm64 path wired a NEON intrinsic behind cgo for this
// mix step; no such header ships in this module's dependency set, so
// the build-tag split is kept (fast path selectable per architecture)
// but arm64 currently forwards to the scalar routines like every other
// arch. A real NEON or SIMD-via-assembly path can replace this function
// body without touching callers.
func mixStereo(mono []float32, lvol, rvol int, buffer []int32) {
	mixStereoScalar(mono, lvol, rvol, buffer)
}

func mixMono(mono []float32, vol int, buffer []int32) {
	mixMonoScalar(mono, vol, buffer)
}
