package bindpose

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// AnimationSample holds one local pose per skeleton joint, in joint storage
// order.
type AnimationSample[T Transform[T]] struct {
	LocalPoses []T
}

// AnimationClip is an immutable sequence of samples at a constant rate.
// Time wraps, so every clip loops. Clips are shared read-only between any
// number of ClipInstances.
type AnimationClip[T Transform[T]] struct {
	samples          []AnimationSample[T]
	samplesPerSecond float32
}

// NewAnimationClip takes ownership of samples. Every sample must cover the
// same joint count.
func NewAnimationClip[T Transform[T]](samples []AnimationSample[T], samplesPerSecond float32) (*AnimationClip[T], error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("animation clip needs at least one sample")
	}
	if samplesPerSecond <= 0 {
		return nil, fmt.Errorf("animation clip sample rate must be positive, got %v", samplesPerSecond)
	}
	jointCount := len(samples[0].LocalPoses)
	for i, s := range samples {
		if len(s.LocalPoses) != jointCount {
			return nil, fmt.Errorf("sample %d has %d joint poses, expected %d", i, len(s.LocalPoses), jointCount)
		}
	}
	return &AnimationClip[T]{
		samples:          samples,
		samplesPerSecond: samplesPerSecond,
	}, nil
}

func (c *AnimationClip[T]) SampleCount() int {
	return len(c.samples)
}

func (c *AnimationClip[T]) JointCount() int {
	return len(c.samples[0].LocalPoses)
}

func (c *AnimationClip[T]) Duration() float32 {
	return float32(len(c.samples)) / c.samplesPerSecond
}

// SetDuration rescales playback so the clip spans the given duration. Meant
// to be called once at load time, never during playback.
func (c *AnimationClip[T]) SetDuration(duration float32) {
	c.samplesPerSecond = float32(len(c.samples)) / duration
}

// GetPoseAtTime writes the interpolated local poses for the given time into
// out. Sampling blends the two samples bracketing the time; indices wrap, so
// the pose is periodic in the clip duration.
func (c *AnimationClip[T]) GetPoseAtTime(elapsed float32, out []T) {
	index := elapsed * c.samplesPerSecond

	floor := math32.Floor(index)
	factor := index - floor

	index1 := wrapIndex(int(floor), len(c.samples))
	index2 := wrapIndex(int(floor)+1, len(c.samples))

	sample1 := c.samples[index1]
	sample2 := c.samples[index2]

	for i := range sample1.LocalPoses {
		out[i] = sample1.LocalPoses[i].Lerp(sample2.LocalPoses[i], factor)
	}
}

// wrapIndex maps any integer onto [0, n), keeping negative playback times
// valid.
func wrapIndex(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// NewDifferenceClip derives an additive clip: per sample and joint it holds
// the pose that takes the reference pose onto the source pose. A shorter
// reference wraps over the source's samples.
func NewDifferenceClip[T Transform[T]](source, reference *AnimationClip[T]) (*AnimationClip[T], error) {
	if source.JointCount() != reference.JointCount() {
		return nil, fmt.Errorf("difference clip joint counts differ: source %d, reference %d", source.JointCount(), reference.JointCount())
	}
	samples := make([]AnimationSample[T], len(source.samples))
	for i, src := range source.samples {
		ref := reference.samples[i%len(reference.samples)]
		poses := make([]T, len(src.LocalPoses))
		for j := range src.LocalPoses {
			poses[j] = ref.LocalPoses[j].Inverse().Concat(src.LocalPoses[j])
		}
		samples[i] = AnimationSample[T]{LocalPoses: poses}
	}
	return NewAnimationClip(samples, source.samplesPerSecond)
}

// JointChannel is one joint's time-sampled local poses as produced by an
// interchange-format importer: homogeneous matrices at the clip's uniform
// sample rate.
type JointChannel struct {
	JointName string       `json:"joint_name"`
	Poses     []mgl32.Mat4 `json:"poses"`
}

// ClipSource is the importer-facing clip description. RootAdjust, when not
// nil, is pre-multiplied onto every root-joint pose (axis fixups such as
// Z-up to Y-up).
type ClipSource struct {
	SamplesPerSecond float32        `json:"samples_per_second"`
	SampleCount      int            `json:"sample_count"`
	Channels         []JointChannel `json:"channels"`
	RootAdjust       *mgl32.Mat4    `json:"root_adjust,omitempty"`
}

// NewClipFromSource resolves channels against the skeleton's joint names.
// Joints without a channel get identity poses.
func NewClipFromSource[T Transform[T]](skeleton *Skeleton, source ClipSource) (*AnimationClip[T], error) {
	if source.SampleCount <= 0 {
		return nil, fmt.Errorf("clip source needs a positive sample count, got %d", source.SampleCount)
	}

	channels := make(map[string]JointChannel, len(source.Channels))
	for _, ch := range source.Channels {
		if len(ch.Poses) != source.SampleCount {
			return nil, fmt.Errorf("channel %q has %d poses, expected %d", ch.JointName, len(ch.Poses), source.SampleCount)
		}
		if _, ok := skeleton.JointIndex(ch.JointName); !ok {
			return nil, fmt.Errorf("channel %q does not match any skeleton joint", ch.JointName)
		}
		channels[ch.JointName] = ch
	}

	var proto T
	samples := make([]AnimationSample[T], source.SampleCount)
	for s := range samples {
		poses := make([]T, skeleton.JointCount())
		for j := 0; j < skeleton.JointCount(); j++ {
			joint := skeleton.Joint(j)
			ch, ok := channels[joint.Name]
			if !ok {
				poses[j] = proto.Identity()
				continue
			}
			m := ch.Poses[s]
			if joint.IsRoot() && source.RootAdjust != nil {
				m = source.RootAdjust.Mul4(m)
			}
			poses[j] = proto.FromMat4(m)
		}
		samples[s] = AnimationSample[T]{LocalPoses: poses}
	}

	return NewAnimationClip(samples, source.SamplesPerSecond)
}

// ClipInstance is a playback cursor over a shared clip. Each clip node owns
// exactly one instance; the clip itself is never mutated.
type ClipInstance[T Transform[T]] struct {
	clip         *AnimationClip[T]
	startTime    float32
	playbackRate float32
	timeOffset   float32
}

func NewClipInstance[T Transform[T]](clip *AnimationClip[T], startTime float32) *ClipInstance[T] {
	return &ClipInstance[T]{
		clip:         clip,
		startTime:    startTime,
		playbackRate: 1,
	}
}

func (ci *ClipInstance[T]) Clip() *AnimationClip[T] {
	return ci.clip
}

func (ci *ClipInstance[T]) PlaybackRate() float32 {
	return ci.playbackRate
}

// LocalTime maps global time onto the clip's time axis.
func (ci *ClipInstance[T]) LocalTime(globalTime float32) float32 {
	return (globalTime-ci.startTime)*ci.playbackRate + ci.timeOffset
}

// SetPlaybackRate changes the rate without a pose discontinuity: the time
// offset is rewritten so local time at globalTime is identical under the old
// and new rates.
func (ci *ClipInstance[T]) SetPlaybackRate(globalTime, rate float32) {
	if rate == ci.playbackRate {
		return
	}
	local := ci.LocalTime(globalTime)
	ci.timeOffset = local - (globalTime-ci.startTime)*rate
	ci.playbackRate = rate
}

// GetPoseAtTime samples the underlying clip at the instance's local time.
func (ci *ClipInstance[T]) GetPoseAtTime(globalTime float32, out []T) {
	ci.clip.GetPoseAtTime(ci.LocalTime(globalTime), out)
}
