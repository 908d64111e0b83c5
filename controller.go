package bindpose

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// CompareOp is the comparison used by transition conditions.
type CompareOp string

const (
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
	OpEqual        CompareOp = "="
	OpNotEqual     CompareOp = "!="
)

// TransitionCondition compares a named parameter against a constant.
type TransitionCondition struct {
	Param string    `json:"param"`
	Op    CompareOp `json:"op"`
	Value float32   `json:"value"`
}

func (c TransitionCondition) evaluate(params map[string]float32) bool {
	value := paramValue(params, c.Param)
	switch c.Op {
	case OpLess:
		return value < c.Value
	case OpLessEqual:
		return value <= c.Value
	case OpGreater:
		return value > c.Value
	case OpGreaterEqual:
		return value >= c.Value
	case OpEqual:
		return value == c.Value
	case OpNotEqual:
		return value != c.Value
	default:
		panic(fmt.Sprintf("unknown transition comparison operator %q", c.Op))
	}
}

// TransitionDef is a directed, timed cross-fade edge between two states.
type TransitionDef struct {
	TargetState string              `json:"target_state"`
	Duration    float32             `json:"duration"`
	Condition   TransitionCondition `json:"condition"`
}

// StateDef names a state, its blend tree, and its outgoing transitions in
// priority order.
type StateDef struct {
	Name        string          `json:"name"`
	Tree        AnimNodeDef     `json:"tree"`
	Transitions []TransitionDef `json:"transitions,omitempty"`
}

// ControllerDef is the decoder-facing controller description.
type ControllerDef struct {
	Parameters   []string   `json:"parameters,omitempty"`
	States       []StateDef `json:"states"`
	InitialState string     `json:"initial_state"`
}

type animationState[T Transform[T]] struct {
	tree        *AnimBlendTree[T]
	transitions []TransitionDef
}

type activeTransition struct {
	startTime float32
	def       TransitionDef
}

// AnimationController drives one skeleton: it owns a state machine whose
// states each hold a blend tree, a parameter map shared by every tree and
// transition condition, a local clock, and at most one in-flight cross-fade.
// A controller must only be evaluated from one goroutine.
type AnimationController[T Transform[T]] struct {
	skeleton *Skeleton
	states   map[string]*animationState[T]
	current  string

	transition *activeTransition

	params        map[string]float32
	clock         float32
	playbackSpeed float32

	logger Logger

	localPoses  []T
	targetPoses []T
}

// NewAnimationController builds every state's blend tree and validates the
// state graph. Parameters referenced anywhere are declared and start at 0.
func NewAnimationController[T Transform[T]](skeleton *Skeleton, def ControllerDef, clips map[string]*AnimationClip[T]) (*AnimationController[T], error) {
	if len(def.States) == 0 {
		return nil, fmt.Errorf("animation controller needs at least one state")
	}

	params := make(map[string]float32, len(def.Parameters))
	for _, name := range def.Parameters {
		params[name] = 0
	}

	states := make(map[string]*animationState[T], len(def.States))
	for _, stateDef := range def.States {
		if _, dup := states[stateDef.Name]; dup {
			return nil, fmt.Errorf("duplicate animation state %q", stateDef.Name)
		}
		tree, err := NewAnimBlendTree(skeleton, stateDef.Tree, clips)
		if err != nil {
			return nil, fmt.Errorf("state %q: %w", stateDef.Name, err)
		}
		for _, name := range stateDef.Tree.Parameters() {
			if _, ok := params[name]; !ok {
				params[name] = 0
			}
		}
		for _, tr := range stateDef.Transitions {
			if _, ok := params[tr.Condition.Param]; !ok {
				params[tr.Condition.Param] = 0
			}
		}
		states[stateDef.Name] = &animationState[T]{
			tree:        tree,
			transitions: stateDef.Transitions,
		}
	}

	for _, stateDef := range def.States {
		for _, tr := range stateDef.Transitions {
			if _, ok := states[tr.TargetState]; !ok {
				return nil, fmt.Errorf("state %q has a transition to unknown state %q", stateDef.Name, tr.TargetState)
			}
		}
	}
	if _, ok := states[def.InitialState]; !ok {
		return nil, fmt.Errorf("initial state %q is not defined", def.InitialState)
	}

	return &AnimationController[T]{
		skeleton:      skeleton,
		states:        states,
		current:       def.InitialState,
		params:        params,
		playbackSpeed: 1,
		logger:        &nopLogger{},
		localPoses:    make([]T, skeleton.JointCount()),
		targetPoses:   make([]T, skeleton.JointCount()),
	}, nil
}

// SetLogger replaces the controller's log sink. Transitions are logged at
// debug level.
func (c *AnimationController[T]) SetLogger(logger Logger) {
	if logger == nil {
		logger = &nopLogger{}
	}
	c.logger = logger
}

func (c *AnimationController[T]) Skeleton() *Skeleton {
	return c.skeleton
}

func (c *AnimationController[T]) CurrentState() string {
	return c.current
}

// InTransition reports whether a cross-fade is in flight.
func (c *AnimationController[T]) InTransition() bool {
	return c.transition != nil
}

// SetParam panics on undeclared names; a typo here is a mismatch between the
// controller definition and the calling code.
func (c *AnimationController[T]) SetParam(name string, value float32) {
	if _, ok := c.params[name]; !ok {
		panic(fmt.Sprintf("animation parameter %q is not declared", name))
	}
	c.params[name] = value
}

func (c *AnimationController[T]) GetParam(name string) float32 {
	return paramValue(c.params, name)
}

func (c *AnimationController[T]) SetPlaybackSpeed(speed float32) {
	c.playbackSpeed = speed
}

// Update advances the local clock and the state machine without producing a
// pose. GetOutputPose calls it internally; use one or the other per frame.
func (c *AnimationController[T]) Update(dt float32) {
	scaled := dt * c.playbackSpeed
	c.updateState(scaled)
	c.clock += scaled
}

// updateState commits a finished cross-fade, or, when none is in flight,
// starts the first transition of the current state whose condition holds.
// At most one transition is ever active; new conditions are not considered
// until the active fade commits.
func (c *AnimationController[T]) updateState(scaledDt float32) {
	if c.transition != nil {
		if c.clock+scaledDt >= c.transition.startTime+c.transition.def.Duration {
			c.logger.Debugf("transition to state %q complete", c.transition.def.TargetState)
			c.current = c.transition.def.TargetState
			c.transition = nil
		}
		return
	}
	for _, tr := range c.states[c.current].transitions {
		if tr.Condition.evaluate(c.params) {
			c.logger.Debugf("starting transition %q -> %q over %vs", c.current, tr.TargetState, tr.Duration)
			c.transition = &activeTransition{
				startTime: c.clock + scaledDt,
				def:       tr,
			}
			return
		}
	}
}

// GetOutputPose advances the controller by dt and writes the resulting
// global pose, one transform per joint, into out. During a cross-fade the
// current and target state trees are both evaluated and their local poses
// blended by the transition progress (clamped to [0,1]) before the skeleton
// resolves globals.
func (c *AnimationController[T]) GetOutputPose(dt float32, out []T) {
	c.Update(dt)

	current := c.states[c.current]
	current.tree.GetOutputPose(c.clock, c.params, c.localPoses)

	if c.transition != nil {
		target := c.states[c.transition.def.TargetState]
		target.tree.GetOutputPose(c.clock, c.params, c.targetPoses)

		factor := float32(1)
		if c.transition.def.Duration > 0 {
			factor = mgl32.Clamp((c.clock-c.transition.startTime)/c.transition.def.Duration, 0, 1)
		}
		for i := range c.localPoses {
			c.localPoses[i] = c.localPoses[i].Lerp(c.targetPoses[i], factor)
		}
	}

	CalculateGlobalPoses(c.skeleton, c.localPoses, out)
}

// GetSkinningTransforms composes global poses with the skeleton's inverse
// bind poses for a GPU-skinning consumer.
func (c *AnimationController[T]) GetSkinningTransforms(globals []T, out []mgl32.Mat4) {
	CalculateSkinningTransforms(c.skeleton, globals, out)
}
