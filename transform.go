package bindpose

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is the contract every joint-transform representation satisfies.
// The rest of the system (clips, blend trees, skeleton, controller) is
// generic over it, so QVTransform and DualQuatTransform are interchangeable.
//
// Concat(b) applies b in the receiver's frame: a.Concat(b).Mat4() ==
// a.Mat4() * b.Mat4(). A skeleton resolves global poses as
// global[parent].Concat(local).
type Transform[T any] interface {
	Identity() T
	Concat(other T) T
	Inverse() T
	Lerp(other T, t float32) T
	TransformVector(v mgl32.Vec3) mgl32.Vec3
	Position() mgl32.Vec3
	Orientation() mgl32.Quat
	WithOrientation(q mgl32.Quat) T
	Mat4() mgl32.Mat4
	FromMat4(m mgl32.Mat4) T
}

// QVTransform is a rigid transform with a uniform scale factor, kept as
// separate scale/rotation/translation terms so rotations interpolate on the
// quaternion rather than through a matrix.
type QVTransform struct {
	Translation mgl32.Vec3
	Scale       float32
	Rotation    mgl32.Quat
}

func (QVTransform) Identity() QVTransform {
	return QVTransform{
		Translation: mgl32.Vec3{},
		Scale:       1,
		Rotation:    mgl32.QuatIdent(),
	}
}

func (t QVTransform) Concat(other QVTransform) QVTransform {
	return QVTransform{
		Translation: t.TransformVector(other.Translation),
		Scale:       t.Scale * other.Scale,
		Rotation:    t.Rotation.Mul(other.Rotation).Normalize(),
	}
}

func (t QVTransform) Inverse() QVTransform {
	invRot := t.Rotation.Conjugate()
	invScale := 1.0 / t.Scale
	return QVTransform{
		Translation: invRot.Rotate(t.Translation).Mul(-invScale),
		Scale:       invScale,
		Rotation:    invRot,
	}
}

func (t QVTransform) Lerp(other QVTransform, factor float32) QVTransform {
	return QVTransform{
		Translation: lerpVec3(t.Translation, other.Translation, factor),
		Scale:       t.Scale + (other.Scale-t.Scale)*factor,
		Rotation:    lerpQuat(t.Rotation, other.Rotation, factor),
	}
}

func (t QVTransform) TransformVector(v mgl32.Vec3) mgl32.Vec3 {
	return t.Rotation.Rotate(v.Mul(t.Scale)).Add(t.Translation)
}

func (t QVTransform) Position() mgl32.Vec3 {
	return t.Translation
}

func (t QVTransform) Orientation() mgl32.Quat {
	return t.Rotation
}

func (t QVTransform) WithOrientation(q mgl32.Quat) QVTransform {
	t.Rotation = q.Normalize()
	return t
}

func (t QVTransform) Mat4() mgl32.Mat4 {
	m := t.Rotation.Mat4()
	if t.Scale != 1 {
		m = m.Mul4(mgl32.Scale3D(t.Scale, t.Scale, t.Scale))
	}
	m.SetCol(3, t.Translation.Vec4(1))
	return m
}

// FromMat4 decomposes a homogeneous matrix assuming a uniform scale.
// Mat4ToQuat picks the largest diagonal term internally, so the conversion
// stays stable for 180-degree rotations.
func (QVTransform) FromMat4(m mgl32.Mat4) QVTransform {
	scale := m.Col(0).Vec3().Len()
	rot := m
	if scale > epsilon {
		rot = rot.Mul(1.0 / scale)
	}
	rot.SetCol(3, mgl32.Vec4{0, 0, 0, 1})
	rot.SetRow(3, mgl32.Vec4{0, 0, 0, 1})
	return QVTransform{
		Translation: m.Col(3).Vec3(),
		Scale:       scale,
		Rotation:    mgl32.Mat4ToQuat(rot).Normalize(),
	}
}

const epsilon = 1e-6

// lerpQuat blends two unit quaternions linearly along the shortest path:
// the second operand's sign is flipped when the dot product is negative,
// then the weighted sum is renormalized.
func lerpQuat(q1, q2 mgl32.Quat, factor float32) mgl32.Quat {
	s := 1 - factor
	t := factor
	if q1.Dot(q2) < 0 {
		t = -t
	}
	return q1.Scale(s).Add(q2.Scale(t)).Normalize()
}

func lerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// approxEqual compares within the tolerance used across the evaluation core.
func approxEqual(a, b float32) bool {
	return math32.Abs(a-b) < 1e-5
}
