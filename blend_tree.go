package bindpose

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// AnimNodeKind tags blend-tree definition nodes.
type AnimNodeKind string

const (
	NodeKindClip     AnimNodeKind = "clip"
	NodeKindLerp     AnimNodeKind = "lerp"
	NodeKindAdditive AnimNodeKind = "additive"
	NodeKindIK       AnimNodeKind = "ik"
)

// AnimNodeDef is the decoder-facing blend-tree description. Clip ids are
// resolved against a name->clip map at tree construction; unresolved ids are
// a fatal build error.
type AnimNodeDef struct {
	Kind AnimNodeKind `json:"kind"`

	// Clip nodes.
	ClipID string `json:"clip_id,omitempty"`

	// Lerp and additive nodes take two inputs (for additive: base first,
	// additive layer second), IK nodes take one.
	Inputs []AnimNodeDef `json:"inputs,omitempty"`

	// Blend parameter for lerp/additive/ik nodes.
	Param string `json:"param,omitempty"`

	// IK nodes.
	EffectorJoint string    `json:"effector_joint,omitempty"`
	TargetParams  [3]string `json:"target_params,omitempty"`
	BendParams    [3]string `json:"bend_params,omitempty"`
}

// Parameters returns every parameter name the subtree references, without
// duplicates, in first-seen order.
func (d AnimNodeDef) Parameters() []string {
	var names []string
	d.collectParameters(&names)
	return names
}

func (d AnimNodeDef) collectParameters(names *[]string) {
	appendName := func(name string) {
		if name == "" {
			return
		}
		for _, n := range *names {
			if n == name {
				return
			}
		}
		*names = append(*names, name)
	}
	appendName(d.Param)
	for _, n := range d.TargetParams {
		appendName(n)
	}
	for _, n := range d.BendParams {
		appendName(n)
	}
	for _, input := range d.Inputs {
		input.collectParameters(names)
	}
}

type nodeArena uint8

const (
	arenaNone nodeArena = iota
	arenaClip
	arenaLerp
	arenaAdditive
	arenaIK
)

// AnimNodeHandle addresses a node inside one of its owning tree's per-kind
// arenas. The zero value is the null handle. Handles are meaningless outside
// the tree that issued them.
type AnimNodeHandle struct {
	arena nodeArena
	index int
}

func (h AnimNodeHandle) IsNull() bool {
	return h.arena == arenaNone
}

type clipAnimNode[T Transform[T]] struct {
	instance *ClipInstance[T]
}

type lerpAnimNode struct {
	input1 AnimNodeHandle
	input2 AnimNodeHandle
	param  string
}

type additiveAnimNode struct {
	base     AnimNodeHandle
	additive AnimNodeHandle
	param    string
}

type ikAnimNode struct {
	input        AnimNodeHandle
	chain        twoBoneIKChain
	blendParam   string
	targetParams [3]string
	bendParams   [3]string
	hasBendHint  bool
}

// AnimBlendTree owns arenas of evaluation nodes flattened from a definition
// tree, plus the scratch pose buffers evaluation reuses. The tree holds a
// read-only reference to its target skeleton.
type AnimBlendTree[T Transform[T]] struct {
	skeleton *Skeleton
	root     AnimNodeHandle

	clipNodes     []clipAnimNode[T]
	lerpNodes     []lerpAnimNode
	additiveNodes []additiveAnimNode
	ikNodes       []ikAnimNode

	scratch [][]T
}

// NewAnimBlendTree flattens def into per-kind arenas, resolving clip ids
// against clips and joint names against the skeleton.
func NewAnimBlendTree[T Transform[T]](skeleton *Skeleton, def AnimNodeDef, clips map[string]*AnimationClip[T]) (*AnimBlendTree[T], error) {
	tree := &AnimBlendTree[T]{skeleton: skeleton}
	root, err := tree.addNode(def, clips)
	if err != nil {
		return nil, err
	}
	tree.root = root
	return tree, nil
}

func (t *AnimBlendTree[T]) Skeleton() *Skeleton {
	return t.skeleton
}

func (t *AnimBlendTree[T]) addNode(def AnimNodeDef, clips map[string]*AnimationClip[T]) (AnimNodeHandle, error) {
	switch def.Kind {

	case NodeKindClip:
		clip, ok := clips[def.ClipID]
		if !ok {
			return AnimNodeHandle{}, fmt.Errorf("blend tree references unknown animation clip %q", def.ClipID)
		}
		if clip.JointCount() != t.skeleton.JointCount() {
			return AnimNodeHandle{}, fmt.Errorf("animation clip %q targets %d joints, skeleton has %d", def.ClipID, clip.JointCount(), t.skeleton.JointCount())
		}
		t.clipNodes = append(t.clipNodes, clipAnimNode[T]{instance: NewClipInstance(clip, 0)})
		return AnimNodeHandle{arena: arenaClip, index: len(t.clipNodes) - 1}, nil

	case NodeKindLerp, NodeKindAdditive:
		if len(def.Inputs) != 2 {
			return AnimNodeHandle{}, fmt.Errorf("%s node needs exactly 2 inputs, got %d", def.Kind, len(def.Inputs))
		}
		if def.Param == "" {
			return AnimNodeHandle{}, fmt.Errorf("%s node needs a blend parameter", def.Kind)
		}
		input1, err := t.addNode(def.Inputs[0], clips)
		if err != nil {
			return AnimNodeHandle{}, err
		}
		input2, err := t.addNode(def.Inputs[1], clips)
		if err != nil {
			return AnimNodeHandle{}, err
		}
		if def.Kind == NodeKindLerp {
			t.lerpNodes = append(t.lerpNodes, lerpAnimNode{input1: input1, input2: input2, param: def.Param})
			return AnimNodeHandle{arena: arenaLerp, index: len(t.lerpNodes) - 1}, nil
		}
		t.additiveNodes = append(t.additiveNodes, additiveAnimNode{base: input1, additive: input2, param: def.Param})
		return AnimNodeHandle{arena: arenaAdditive, index: len(t.additiveNodes) - 1}, nil

	case NodeKindIK:
		if len(def.Inputs) != 1 {
			return AnimNodeHandle{}, fmt.Errorf("ik node needs exactly 1 input, got %d", len(def.Inputs))
		}
		if def.Param == "" {
			return AnimNodeHandle{}, fmt.Errorf("ik node needs a blend parameter")
		}
		for i, name := range def.TargetParams {
			if name == "" {
				return AnimNodeHandle{}, fmt.Errorf("ik node is missing target parameter %d", i)
			}
		}
		effector, ok := t.skeleton.JointIndex(def.EffectorJoint)
		if !ok {
			return AnimNodeHandle{}, fmt.Errorf("ik node references unknown effector joint %q", def.EffectorJoint)
		}
		middle := t.skeleton.Joint(effector).ParentIndex
		if middle == RootParentIndex {
			return AnimNodeHandle{}, fmt.Errorf("ik effector joint %q has no parent bone", def.EffectorJoint)
		}
		root := t.skeleton.Joint(middle).ParentIndex
		if root == RootParentIndex {
			return AnimNodeHandle{}, fmt.Errorf("ik effector joint %q has no grandparent bone", def.EffectorJoint)
		}
		input, err := t.addNode(def.Inputs[0], clips)
		if err != nil {
			return AnimNodeHandle{}, err
		}
		hasBendHint := def.BendParams[0] != "" || def.BendParams[1] != "" || def.BendParams[2] != ""
		t.ikNodes = append(t.ikNodes, ikAnimNode{
			input:        input,
			chain:        twoBoneIKChain{rootIndex: root, middleIndex: middle, effectorIndex: effector},
			blendParam:   def.Param,
			targetParams: def.TargetParams,
			bendParams:   def.BendParams,
			hasBendHint:  hasBendHint,
		})
		return AnimNodeHandle{arena: arenaIK, index: len(t.ikNodes) - 1}, nil

	default:
		return AnimNodeHandle{}, fmt.Errorf("unknown blend tree node kind %q", def.Kind)
	}
}

// GetOutputPose evaluates the tree at the given time and writes one local
// pose per skeleton joint into out.
func (t *AnimBlendTree[T]) GetOutputPose(elapsed float32, params map[string]float32, out []T) {
	if len(out) < t.skeleton.JointCount() {
		panic("output pose slice shorter than skeleton joint count")
	}
	t.evalNode(t.root, elapsed, params, out[:t.skeleton.JointCount()])
}

func (t *AnimBlendTree[T]) evalNode(h AnimNodeHandle, elapsed float32, params map[string]float32, out []T) {
	switch h.arena {

	case arenaClip:
		t.clipNodes[h.index].instance.GetPoseAtTime(elapsed, out)

	case arenaLerp:
		node := t.lerpNodes[h.index]
		factor := paramValue(params, node.param)
		t.syncClipInputs(node, elapsed, factor)

		tmp := t.acquireBuffer()
		t.evalNode(node.input1, elapsed, params, tmp)
		t.evalNode(node.input2, elapsed, params, out)
		for i := range out {
			out[i] = tmp[i].Lerp(out[i], factor)
		}
		t.releaseBuffer(tmp)

	case arenaAdditive:
		node := t.additiveNodes[h.index]
		factor := paramValue(params, node.param)

		tmp := t.acquireBuffer()
		t.evalNode(node.base, elapsed, params, out)
		t.evalNode(node.additive, elapsed, params, tmp)
		var proto T
		identity := proto.Identity()
		for i := range out {
			// Fading the additive layer toward identity keeps factor 0 an
			// exact reproduction of the base pose.
			out[i] = out[i].Concat(identity.Lerp(tmp[i], factor))
		}
		t.releaseBuffer(tmp)

	case arenaIK:
		node := t.ikNodes[h.index]
		t.evalNode(node.input, elapsed, params, out)

		factor := paramValue(params, node.blendParam)
		if factor <= 0 {
			return
		}
		target := mgl32.Vec3{
			paramValue(params, node.targetParams[0]),
			paramValue(params, node.targetParams[1]),
			paramValue(params, node.targetParams[2]),
		}
		var bendHint mgl32.Vec3
		if node.hasBendHint {
			bendHint = mgl32.Vec3{
				paramValue(params, node.bendParams[0]),
				paramValue(params, node.bendParams[1]),
				paramValue(params, node.bendParams[2]),
			}
		}

		globals := t.acquireBuffer()
		solved := t.acquireBuffer()
		CalculateGlobalPoses(t.skeleton, out, globals)
		copy(solved, out)
		if solveTwoBoneIK(t.skeleton, node.chain, solved, globals, target, bendHint) {
			for i := range out {
				out[i] = out[i].Lerp(solved[i], factor)
			}
		}
		t.releaseBuffer(solved)
		t.releaseBuffer(globals)

	default:
		panic("evaluating null blend tree node")
	}
}

// resolveClipInstance follows single-input pass-through nodes (IK) down to a
// clip instance, or returns nil when the subtree blends multiple sources.
func (t *AnimBlendTree[T]) resolveClipInstance(h AnimNodeHandle) *ClipInstance[T] {
	switch h.arena {
	case arenaClip:
		return t.clipNodes[h.index].instance
	case arenaIK:
		return t.resolveClipInstance(t.ikNodes[h.index].input)
	default:
		return nil
	}
}

// syncClipInputs keeps two looping clips phase-locked across a lerp: both
// instances are retimed toward the blend-weighted average of their durations
// so they hit their loop points together. Rate changes preserve local-time
// continuity.
func (t *AnimBlendTree[T]) syncClipInputs(node lerpAnimNode, elapsed, factor float32) {
	inst1 := t.resolveClipInstance(node.input1)
	inst2 := t.resolveClipInstance(node.input2)
	if inst1 == nil || inst2 == nil {
		return
	}
	duration1 := inst1.Clip().Duration()
	duration2 := inst2.Clip().Duration()
	target := duration1 + (duration2-duration1)*factor
	if target < epsilon {
		return
	}
	inst1.SetPlaybackRate(elapsed, duration1/target)
	inst2.SetPlaybackRate(elapsed, duration2/target)
}

// paramValue fails loudly on undeclared names so a mismatch between a
// definition file and its controller surfaces immediately.
func paramValue(params map[string]float32, name string) float32 {
	value, ok := params[name]
	if !ok {
		panic(fmt.Sprintf("animation parameter %q is not declared", name))
	}
	return value
}

func (t *AnimBlendTree[T]) acquireBuffer() []T {
	if n := len(t.scratch); n > 0 {
		buf := t.scratch[n-1]
		t.scratch = t.scratch[:n-1]
		return buf
	}
	return make([]T, t.skeleton.JointCount())
}

func (t *AnimBlendTree[T]) releaseBuffer(buf []T) {
	t.scratch = append(t.scratch, buf)
}
