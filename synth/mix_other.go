//go:build !arm64

package synth

func mixStereo(mono []float32, lvol, rvol int, buffer []int32) {
	mixStereoScalar(mono, lvol, rvol, buffer)
}

func mixMono(mono []float32, vol int, buffer []int32) {
	mixMonoScalar(mono, vol, buffer)
}
