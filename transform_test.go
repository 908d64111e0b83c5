package bindpose

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func quatApproxEqual(a, b mgl32.Quat) bool {
	// q and -q encode the same rotation.
	d := a.Dot(b)
	if d < 0 {
		d = -d
	}
	return d > 1-1e-5
}

func qvApproxEqual(a, b QVTransform) bool {
	return a.Translation.ApproxEqualThreshold(b.Translation, 1e-5) &&
		approxEqual(a.Scale, b.Scale) &&
		quatApproxEqual(a.Rotation, b.Rotation)
}

func TestQuatLerpIdempotent(t *testing.T) {
	quats := []mgl32.Quat{
		mgl32.QuatIdent(),
		mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}),
		mgl32.QuatRotate(mgl32.DegToRad(180), mgl32.Vec3{1, 0, 0}),
		mgl32.QuatRotate(mgl32.DegToRad(33), mgl32.Vec3{1, 1, 1}.Normalize()),
	}
	for _, q := range quats {
		for _, factor := range []float32{0, 0.25, 0.5, 0.75, 1} {
			got := lerpQuat(q, q, factor)
			if !quatApproxEqual(got, q) {
				t.Errorf("lerpQuat(q, q, %v) = %v, want %v", factor, got, q)
			}
		}
	}
}

func TestQuatLerpShortestPath(t *testing.T) {
	q := mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 0, 1})
	negated := q.Scale(-1)

	got := lerpQuat(q, negated, 0.5)
	if !quatApproxEqual(got, q) {
		t.Errorf("blending q with -q should stay on q's rotation, got %v", got)
	}
}

func TestQVTransformConcatInverse(t *testing.T) {
	transforms := []QVTransform{
		QVTransform{}.Identity(),
		{
			Translation: mgl32.Vec3{1, -2, 3},
			Scale:       2,
			Rotation:    mgl32.QuatRotate(mgl32.DegToRad(75), mgl32.Vec3{0, 1, 0}),
		},
		{
			Translation: mgl32.Vec3{-4, 0.5, 12},
			Scale:       0.25,
			Rotation:    mgl32.QuatRotate(mgl32.DegToRad(180), mgl32.Vec3{1, 0, 0}),
		},
	}
	identity := QVTransform{}.Identity()
	for _, tr := range transforms {
		got := tr.Concat(tr.Inverse())
		if !qvApproxEqual(got, identity) {
			t.Errorf("concat(a, inverse(a)) = %+v, want identity", got)
		}
	}
}

func TestQVTransformLerpEndpoints(t *testing.T) {
	a := QVTransform{
		Translation: mgl32.Vec3{1, 2, 3},
		Scale:       1,
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{0, 0, 1}),
	}
	b := QVTransform{
		Translation: mgl32.Vec3{-5, 0, 1},
		Scale:       3,
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(-60), mgl32.Vec3{0, 1, 0}),
	}

	if got := a.Lerp(b, 0); !qvApproxEqual(got, a) {
		t.Errorf("lerp(a, b, 0) = %+v, want a", got)
	}
	if got := a.Lerp(b, 1); !qvApproxEqual(got, b) {
		t.Errorf("lerp(a, b, 1) = %+v, want b", got)
	}
}

func TestQVTransformVector(t *testing.T) {
	tr := QVTransform{
		Translation: mgl32.Vec3{10, 0, 0},
		Scale:       2,
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}),
	}

	// (1,0,0) scaled to (2,0,0), rotated to (0,2,0), then translated.
	got := tr.TransformVector(mgl32.Vec3{1, 0, 0})
	want := mgl32.Vec3{10, 2, 0}
	if !got.ApproxEqualThreshold(want, 1e-5) {
		t.Errorf("TransformVector = %v, want %v", got, want)
	}
}

func TestQVTransformMat4RoundTrip(t *testing.T) {
	transforms := []QVTransform{
		QVTransform{}.Identity(),
		{
			Translation: mgl32.Vec3{3, -1, 2},
			Scale:       1,
			Rotation:    mgl32.QuatRotate(mgl32.DegToRad(120), mgl32.Vec3{1, 2, 0}.Normalize()),
		},
		{
			Translation: mgl32.Vec3{0, 5, 0},
			Scale:       2.5,
			Rotation:    mgl32.QuatRotate(mgl32.DegToRad(180), mgl32.Vec3{0, 1, 0}),
		},
	}
	for _, tr := range transforms {
		got := QVTransform{}.FromMat4(tr.Mat4())
		if !qvApproxEqual(got, tr) {
			t.Errorf("FromMat4(Mat4(%+v)) = %+v", tr, got)
		}
	}
}

func TestQVTransformConcatMatchesMatrices(t *testing.T) {
	a := QVTransform{
		Translation: mgl32.Vec3{1, 0, 0},
		Scale:       1,
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}),
	}
	b := QVTransform{
		Translation: mgl32.Vec3{0, 2, 0},
		Scale:       1,
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 1, 0}),
	}

	got := a.Concat(b)
	want := QVTransform{}.FromMat4(a.Mat4().Mul4(b.Mat4()))
	if !qvApproxEqual(got, want) {
		t.Errorf("Concat = %+v, matrix product gives %+v", got, want)
	}
}
