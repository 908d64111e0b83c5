package bindpose

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// RootParentIndex marks a joint with no parent.
const RootParentIndex = -1

type Joint struct {
	Name string `json:"name"`

	// Index of the parent joint in the skeleton's joint list, or
	// RootParentIndex. Always smaller than the joint's own index.
	ParentIndex int `json:"parent_index"`

	// Transforms model-space coordinates into this joint's bind-pose space.
	InverseBindPose mgl32.Mat4 `json:"inverse_bind_pose"`
}

func (j Joint) IsRoot() bool {
	return j.ParentIndex == RootParentIndex
}

// Skeleton is an immutable, ordered joint hierarchy. Joints are stored
// parents-first so a single forward pass resolves global poses. Skeletons
// are shared read-only between controllers.
type Skeleton struct {
	joints    []Joint
	nameIndex map[string]int
}

// NewSkeleton validates the parent-before-child ordering produced by the
// importer and builds the name lookup.
func NewSkeleton(joints []Joint) (*Skeleton, error) {
	nameIndex := make(map[string]int, len(joints))
	for i, joint := range joints {
		if !joint.IsRoot() && (joint.ParentIndex < 0 || joint.ParentIndex >= i) {
			return nil, fmt.Errorf("joint %q (index %d) has parent index %d, parents must precede children", joint.Name, i, joint.ParentIndex)
		}
		nameIndex[joint.Name] = i
	}
	return &Skeleton{
		joints:    joints,
		nameIndex: nameIndex,
	}, nil
}

func (s *Skeleton) JointCount() int {
	return len(s.joints)
}

func (s *Skeleton) Joint(index int) Joint {
	return s.joints[index]
}

// JointIndex returns the index of the named joint.
func (s *Skeleton) JointIndex(name string) (int, bool) {
	i, ok := s.nameIndex[name]
	return i, ok
}

// CalculateGlobalPoses composes local poses down the hierarchy: the root's
// global pose is its local pose, every other joint's is
// global[parent].Concat(local). locals and out must hold one pose per joint.
func CalculateGlobalPoses[T Transform[T]](skeleton *Skeleton, locals []T, out []T) {
	if len(locals) < skeleton.JointCount() || len(out) < skeleton.JointCount() {
		panic("pose slice shorter than skeleton joint count")
	}
	for i, joint := range skeleton.joints {
		if joint.IsRoot() {
			out[i] = locals[i]
		} else {
			out[i] = out[joint.ParentIndex].Concat(locals[i])
		}
	}
}

// CalculateSkinningTransforms composes each global pose with the joint's
// inverse bind pose, producing the matrices a mesh-skinning stage consumes.
func CalculateSkinningTransforms[T Transform[T]](skeleton *Skeleton, globals []T, out []mgl32.Mat4) {
	if len(globals) < skeleton.JointCount() || len(out) < skeleton.JointCount() {
		panic("pose slice shorter than skeleton joint count")
	}
	for i, joint := range skeleton.joints {
		out[i] = globals[i].Mat4().Mul4(joint.InverseBindPose)
	}
}
