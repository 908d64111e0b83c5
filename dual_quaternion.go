package bindpose

import (
	"github.com/go-gl/mathgl/mgl32"
)

// DualQuatTransform encodes rotation and translation as a unit dual
// quaternion. Blending dual quaternions avoids the volume-loss artifact of
// blending matrices, at a higher per-joint cost. There is no scale channel;
// Concat and Lerp treat scale as 1.
type DualQuatTransform struct {
	Real mgl32.Quat
	Dual mgl32.Quat
}

// NewDualQuat builds a dual quaternion from a rotation and a translation.
func NewDualQuat(rotation mgl32.Quat, translation mgl32.Vec3) DualQuatTransform {
	real := rotation.Normalize()
	t := mgl32.Quat{W: 0, V: translation}
	return DualQuatTransform{
		Real: real,
		Dual: t.Mul(real).Scale(0.5),
	}
}

func (DualQuatTransform) Identity() DualQuatTransform {
	return DualQuatTransform{
		Real: mgl32.QuatIdent(),
		Dual: mgl32.Quat{},
	}
}

func (d DualQuatTransform) Concat(other DualQuatTransform) DualQuatTransform {
	return DualQuatTransform{
		Real: d.Real.Mul(other.Real),
		Dual: d.Real.Mul(other.Dual).Add(d.Dual.Mul(other.Real)),
	}.normalize()
}

// Inverse assumes a unit dual quaternion, for which the inverse is the
// quaternion conjugate of both parts.
func (d DualQuatTransform) Inverse() DualQuatTransform {
	return DualQuatTransform{
		Real: d.Real.Conjugate(),
		Dual: d.Dual.Conjugate(),
	}
}

// Lerp is dual-quaternion linear blending: flip the second operand when the
// real parts point away from each other, blend both parts, renormalize.
func (d DualQuatTransform) Lerp(other DualQuatTransform, factor float32) DualQuatTransform {
	s := 1 - factor
	t := factor
	if d.Real.Dot(other.Real) < 0 {
		t = -t
	}
	return DualQuatTransform{
		Real: d.Real.Scale(s).Add(other.Real.Scale(t)),
		Dual: d.Dual.Scale(s).Add(other.Dual.Scale(t)),
	}.normalize()
}

func (d DualQuatTransform) TransformVector(v mgl32.Vec3) mgl32.Vec3 {
	return d.Real.Rotate(v).Add(d.Position())
}

// Position recovers the translation as 2 * dual * conj(real).
func (d DualQuatTransform) Position() mgl32.Vec3 {
	return d.Dual.Mul(d.Real.Conjugate()).Scale(2).V
}

func (d DualQuatTransform) Orientation() mgl32.Quat {
	return d.Real
}

func (d DualQuatTransform) WithOrientation(q mgl32.Quat) DualQuatTransform {
	return NewDualQuat(q, d.Position())
}

func (d DualQuatTransform) Mat4() mgl32.Mat4 {
	m := d.Real.Mat4()
	m.SetCol(3, d.Position().Vec4(1))
	return m
}

// FromMat4 reads rotation and translation; any scale in m is discarded.
func (DualQuatTransform) FromMat4(m mgl32.Mat4) DualQuatTransform {
	var qv QVTransform
	qv = qv.FromMat4(m)
	return NewDualQuat(qv.Rotation, qv.Translation)
}

func (d DualQuatTransform) normalize() DualQuatTransform {
	mag := d.Real.Len()
	if mag < epsilon {
		return d.Identity()
	}
	inv := 1.0 / mag
	return DualQuatTransform{
		Real: d.Real.Scale(inv),
		Dual: d.Dual.Scale(inv),
	}
}
