package bindpose

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

// armSkeleton is a 3-joint chain with both bones of length 1 along +X:
// shoulder at the origin, elbow at (1,0,0), hand at (2,0,0).
func armSkeleton(t *testing.T) (*Skeleton, []QVTransform) {
	t.Helper()
	skeleton := mustSkeleton(t,
		Joint{Name: "shoulder", ParentIndex: RootParentIndex, InverseBindPose: mgl32.Ident4()},
		Joint{Name: "elbow", ParentIndex: 0, InverseBindPose: mgl32.Ident4()},
		Joint{Name: "hand", ParentIndex: 1, InverseBindPose: mgl32.Ident4()},
	)
	locals := []QVTransform{
		qvPose(0, 0, 0),
		qvPose(1, 0, 0),
		qvPose(1, 0, 0),
	}
	return skeleton, locals
}

func armChain() twoBoneIKChain {
	return twoBoneIKChain{rootIndex: 0, middleIndex: 1, effectorIndex: 2}
}

func solveArm(t *testing.T, target, bendHint mgl32.Vec3) ([]QVTransform, bool) {
	t.Helper()
	skeleton, locals := armSkeleton(t)
	globals := make([]QVTransform, 3)
	CalculateGlobalPoses(skeleton, locals, globals)

	ok := solveTwoBoneIK(skeleton, armChain(), locals, globals, target, bendHint)
	return locals, ok
}

func globalsOf(t *testing.T, locals []QVTransform) []QVTransform {
	t.Helper()
	skeleton, _ := armSkeleton(t)
	globals := make([]QVTransform, len(locals))
	CalculateGlobalPoses(skeleton, locals, globals)
	return globals
}

func TestTwoBoneIKReachableTarget(t *testing.T) {
	target := mgl32.Vec3{1, 1, 0} // distance sqrt(2) < L1+L2 = 2

	locals, ok := solveArm(t, target, mgl32.Vec3{})
	require.True(t, ok)

	globals := globalsOf(t, locals)
	if !globals[2].Translation.ApproxEqualThreshold(target, 1e-4) {
		t.Errorf("effector position = %v, want %v", globals[2].Translation, target)
	}
	if globals[1].Translation.Y() <= 0 {
		t.Errorf("elbow height = %v, want > 0", globals[1].Translation.Y())
	}

	// Bone lengths are preserved by the solve.
	upper := globals[1].Translation.Sub(globals[0].Translation).Len()
	lower := globals[2].Translation.Sub(globals[1].Translation).Len()
	if !approxEqual(upper, 1) || !approxEqual(lower, 1) {
		t.Errorf("bone lengths after solve = %v, %v, want 1, 1", upper, lower)
	}
}

func TestTwoBoneIKUnreachableTarget(t *testing.T) {
	_, original := armSkeleton(t)

	locals, ok := solveArm(t, mgl32.Vec3{3, 0, 0}, mgl32.Vec3{}) // distance 3 > 2
	require.False(t, ok)

	for i := range locals {
		if !qvApproxEqual(locals[i], original[i]) {
			t.Errorf("joint %d pose modified on unreachable target: %+v", i, locals[i])
		}
	}
}

func TestTwoBoneIKTargetOnRoot(t *testing.T) {
	_, ok := solveArm(t, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{})
	require.False(t, ok)
}

func TestTwoBoneIKBendHint(t *testing.T) {
	target := mgl32.Vec3{1, 1, 0}

	// Flipping the plane normal mirrors the elbow to the other side of the
	// shoulder->target line.
	locals, ok := solveArm(t, target, mgl32.Vec3{0, 0, -1})
	require.True(t, ok)

	globals := globalsOf(t, locals)
	if !globals[2].Translation.ApproxEqualThreshold(target, 1e-4) {
		t.Errorf("effector position = %v, want %v", globals[2].Translation, target)
	}
	if !globals[1].Translation.ApproxEqualThreshold(mgl32.Vec3{1, 0, 0}, 1e-4) {
		t.Errorf("mirrored elbow position = %v, want (1, 0, 0)", globals[1].Translation)
	}
}

func TestTwoBoneIKCollinearChainDefaultsBendAxis(t *testing.T) {
	// Straight arm reaching along its own axis: the cross-product default
	// for the plane normal degenerates and a fallback axis must kick in.
	target := mgl32.Vec3{1.5, 0, 0}

	locals, ok := solveArm(t, target, mgl32.Vec3{})
	require.True(t, ok)

	globals := globalsOf(t, locals)
	if !globals[2].Translation.ApproxEqualThreshold(target, 1e-4) {
		t.Errorf("effector position = %v, want %v", globals[2].Translation, target)
	}
}

func TestIKNodeInTree(t *testing.T) {
	skeleton, locals := armSkeleton(t)
	clips := map[string]*AnimationClip[QVTransform]{
		"arm_rest": mustClip(t, [][]QVTransform{locals}, 30),
	}

	def := AnimNodeDef{
		Kind:          NodeKindIK,
		Param:         "ik_blend",
		EffectorJoint: "hand",
		TargetParams:  [3]string{"target_x", "target_y", "target_z"},
		Inputs:        []AnimNodeDef{{Kind: NodeKindClip, ClipID: "arm_rest"}},
	}
	tree, err := NewAnimBlendTree(skeleton, def, clips)
	require.NoError(t, err)

	params := map[string]float32{
		"ik_blend": 0,
		"target_x": 1,
		"target_y": 1,
		"target_z": 0,
	}

	out := make([]QVTransform, 3)
	globals := make([]QVTransform, 3)

	// Blend 0: IK has no effect.
	tree.GetOutputPose(0, params, out)
	for i := range out {
		if !qvApproxEqual(out[i], locals[i]) {
			t.Errorf("joint %d pose with ik_blend=0 = %+v, want input pose", i, out[i])
		}
	}

	// Blend 1: the effector reaches the target.
	params["ik_blend"] = 1
	tree.GetOutputPose(0, params, out)
	CalculateGlobalPoses(skeleton, out, globals)
	if !globals[2].Translation.ApproxEqualThreshold(mgl32.Vec3{1, 1, 0}, 1e-4) {
		t.Errorf("effector position with ik_blend=1 = %v, want (1, 1, 0)", globals[2].Translation)
	}

	// Unreachable target: output equals the unmodified input pose.
	params["target_x"] = 5
	tree.GetOutputPose(0, params, out)
	for i := range out {
		if !qvApproxEqual(out[i], locals[i]) {
			t.Errorf("joint %d pose with unreachable target = %+v, want input pose", i, out[i])
		}
	}
}

func TestIKNodeBuildErrors(t *testing.T) {
	skeleton, locals := armSkeleton(t)
	clips := map[string]*AnimationClip[QVTransform]{
		"arm_rest": mustClip(t, [][]QVTransform{locals}, 30),
	}

	// Unknown effector joint.
	_, err := NewAnimBlendTree(skeleton, AnimNodeDef{
		Kind:          NodeKindIK,
		Param:         "w",
		EffectorJoint: "tail",
		TargetParams:  [3]string{"x", "y", "z"},
		Inputs:        []AnimNodeDef{{Kind: NodeKindClip, ClipID: "arm_rest"}},
	}, clips)
	require.Error(t, err)
	require.Contains(t, err.Error(), "tail")

	// Effector without two ancestors.
	_, err = NewAnimBlendTree(skeleton, AnimNodeDef{
		Kind:          NodeKindIK,
		Param:         "w",
		EffectorJoint: "elbow",
		TargetParams:  [3]string{"x", "y", "z"},
		Inputs:        []AnimNodeDef{{Kind: NodeKindClip, ClipID: "arm_rest"}},
	}, clips)
	require.Error(t, err)
}
