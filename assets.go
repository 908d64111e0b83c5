package bindpose

import (
	"fmt"

	"github.com/google/uuid"
)

type AssetId string

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}

// AssetServer owns the shared, read-only skeletons and animation clips that
// controllers and blend trees reference. Assets are registered once at load
// time under a caller-chosen name and addressed by name or by AssetId
// afterwards.
type AssetServer[T Transform[T]] struct {
	skeletons     map[AssetId]*Skeleton
	clips         map[AssetId]*AnimationClip[T]
	skeletonNames map[string]AssetId
	clipNames     map[string]AssetId
}

func NewAssetServer[T Transform[T]]() *AssetServer[T] {
	return &AssetServer[T]{
		skeletons:     make(map[AssetId]*Skeleton),
		clips:         make(map[AssetId]*AnimationClip[T]),
		skeletonNames: make(map[string]AssetId),
		clipNames:     make(map[string]AssetId),
	}
}

// LoadSkeleton builds a skeleton from importer joint data and registers it.
func (server *AssetServer[T]) LoadSkeleton(name string, joints []Joint) (*Skeleton, error) {
	if _, dup := server.skeletonNames[name]; dup {
		return nil, fmt.Errorf("skeleton %q is already registered", name)
	}
	skeleton, err := NewSkeleton(joints)
	if err != nil {
		return nil, fmt.Errorf("skeleton %q: %w", name, err)
	}
	id := makeAssetId()
	server.skeletons[id] = skeleton
	server.skeletonNames[name] = id
	return skeleton, nil
}

// LoadClip builds a clip from importer channel data, resolved against the
// given skeleton, and registers it. The optional duration override rescales
// the clip once at load time; pass 0 to keep the source rate.
func (server *AssetServer[T]) LoadClip(name string, skeleton *Skeleton, source ClipSource, duration float32) (*AnimationClip[T], error) {
	if _, dup := server.clipNames[name]; dup {
		return nil, fmt.Errorf("animation clip %q is already registered", name)
	}
	clip, err := NewClipFromSource[T](skeleton, source)
	if err != nil {
		return nil, fmt.Errorf("animation clip %q: %w", name, err)
	}
	if duration > 0 {
		clip.SetDuration(duration)
	}
	server.registerClip(name, clip)
	return clip, nil
}

// LoadDifferenceClip derives and registers an additive clip from two
// registered clips.
func (server *AssetServer[T]) LoadDifferenceClip(name, sourceName, referenceName string) (*AnimationClip[T], error) {
	if _, dup := server.clipNames[name]; dup {
		return nil, fmt.Errorf("animation clip %q is already registered", name)
	}
	source, ok := server.Clip(sourceName)
	if !ok {
		return nil, fmt.Errorf("difference clip %q: unknown source clip %q", name, sourceName)
	}
	reference, ok := server.Clip(referenceName)
	if !ok {
		return nil, fmt.Errorf("difference clip %q: unknown reference clip %q", name, referenceName)
	}
	clip, err := NewDifferenceClip(source, reference)
	if err != nil {
		return nil, fmt.Errorf("difference clip %q: %w", name, err)
	}
	server.registerClip(name, clip)
	return clip, nil
}

// AddClip registers an already-built clip under the given name.
func (server *AssetServer[T]) AddClip(name string, clip *AnimationClip[T]) error {
	if _, dup := server.clipNames[name]; dup {
		return fmt.Errorf("animation clip %q is already registered", name)
	}
	server.registerClip(name, clip)
	return nil
}

func (server *AssetServer[T]) registerClip(name string, clip *AnimationClip[T]) {
	id := makeAssetId()
	server.clips[id] = clip
	server.clipNames[name] = id
}

func (server *AssetServer[T]) Skeleton(name string) (*Skeleton, bool) {
	id, ok := server.skeletonNames[name]
	if !ok {
		return nil, false
	}
	return server.skeletons[id], true
}

func (server *AssetServer[T]) Clip(name string) (*AnimationClip[T], bool) {
	id, ok := server.clipNames[name]
	if !ok {
		return nil, false
	}
	return server.clips[id], true
}

// Clips returns the name->clip mapping blend-tree and controller builders
// consume.
func (server *AssetServer[T]) Clips() map[string]*AnimationClip[T] {
	clips := make(map[string]*AnimationClip[T], len(server.clipNames))
	for name, id := range server.clipNames {
		clips[name] = server.clips[id]
	}
	return clips
}
