package bindpose

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// twoBoneIKChain names the three joints the solver touches: root is the
// middle joint's parent, middle is the effector's parent. Only root and
// middle rotate; the effector's own local pose is never modified.
type twoBoneIKChain struct {
	rootIndex     int
	middleIndex   int
	effectorIndex int
}

// solveTwoBoneIK rewrites the root and middle local rotations in locals so
// the effector reaches target (model space). globals must already hold the
// global poses for locals. bendHint, when non-zero, is the bend-plane
// normal; otherwise the normal comes from root->middle x root->target.
//
// Returns false without touching locals when the target is unreachable
// (beyond L1+L2, inside |L1-L2|, or on top of the root) or the chain is
// degenerate. A failed solve is a per-node no-op, never an error.
func solveTwoBoneIK[T Transform[T]](skeleton *Skeleton, chain twoBoneIKChain, locals, globals []T, target, bendHint mgl32.Vec3) bool {
	rootPos := globals[chain.rootIndex].Position()
	middlePos := globals[chain.middleIndex].Position()
	effectorPos := globals[chain.effectorIndex].Position()

	upperLen := middlePos.Sub(rootPos).Len()
	lowerLen := effectorPos.Sub(middlePos).Len()
	if upperLen < epsilon || lowerLen < epsilon {
		return false
	}

	toTarget := target.Sub(rootPos)
	dist := toTarget.Len()
	if dist < epsilon || dist > upperLen+lowerLen || dist < math32.Abs(upperLen-lowerLen) {
		return false
	}

	// Bend-plane frame: x toward the target, z the plane normal, y = z cross x.
	xAxis := toTarget.Mul(1 / dist)
	normal := bendHint
	if normal.Len() < epsilon {
		normal = middlePos.Sub(rootPos).Cross(toTarget)
	}
	if normal.Len() < epsilon {
		// Chain is collinear with the target direction; any perpendicular
		// axis gives a valid plane.
		normal = perpendicular(xAxis)
	}
	zAxis := normal.Normalize()
	yAxis := zAxis.Cross(xAxis)
	if yAxis.Len() < epsilon {
		return false
	}
	yAxis = yAxis.Normalize()

	// Planar triangle: the elbow sits at (L1 cos a, L1 sin a) with the
	// target at (dist, 0), by the law of cosines.
	cosA := mgl32.Clamp((upperLen*upperLen+dist*dist-lowerLen*lowerLen)/(2*upperLen*dist), -1, 1)
	sinA := math32.Sqrt(1 - cosA*cosA)
	elbow := rootPos.
		Add(xAxis.Mul(upperLen * cosA)).
		Add(yAxis.Mul(upperLen * sinA))

	// Re-aim the root bone at the new elbow position.
	rootDelta := mgl32.QuatBetweenVectors(middlePos.Sub(rootPos), elbow.Sub(rootPos))
	newRootGlobal := rootDelta.Mul(globals[chain.rootIndex].Orientation()).Normalize()

	rootLocal := newRootGlobal
	if parent := skeleton.Joint(chain.rootIndex).ParentIndex; parent != RootParentIndex {
		rootLocal = globals[parent].Orientation().Conjugate().Mul(newRootGlobal).Normalize()
	}

	// The middle joint followed the root; re-aim its bone at the target.
	middleGlobal := newRootGlobal.Mul(locals[chain.middleIndex].Orientation()).Normalize()
	effectorOffset := middleGlobal.Rotate(locals[chain.effectorIndex].Position())
	middleDelta := mgl32.QuatBetweenVectors(effectorOffset, target.Sub(elbow))
	newMiddleGlobal := middleDelta.Mul(middleGlobal).Normalize()
	middleLocal := newRootGlobal.Conjugate().Mul(newMiddleGlobal).Normalize()

	locals[chain.rootIndex] = locals[chain.rootIndex].WithOrientation(rootLocal)
	locals[chain.middleIndex] = locals[chain.middleIndex].WithOrientation(middleLocal)
	return true
}

// perpendicular returns an arbitrary unit vector orthogonal to v.
func perpendicular(v mgl32.Vec3) mgl32.Vec3 {
	axis := mgl32.Vec3{1, 0, 0}
	if math32.Abs(v.X()) > 0.9 {
		axis = mgl32.Vec3{0, 1, 0}
	}
	return v.Cross(axis).Normalize()
}
