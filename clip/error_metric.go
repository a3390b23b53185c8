package clip

import "github.com/animblob/animblob/transform"

// Sampler resolves a single bone's local transform at a given sample index,
// used by the error metric to fetch either the reference (original) pose or
// a candidate quantized pose without caring which source it came from.
type Sampler func(boneIndex, sampleIndex int) transform.QVV

// ObjectSpaceError computes the object-space virtual-vertex displacement for
// one bone at one sample, per spec.md §4.11: it walks root-to-bone twice
// (once through ref, once through lossy), transforms a virtual point at
// shellDistance along each of the three canonical axes through both chains,
// and returns the max of the three displacements.
func ObjectSpaceError(topoOrder []int, bones []*BoneStreams, ref, lossy Sampler, sampleIndex, boneIndex int, shellDistance float32) float32 {
	refObject := objectSpacePose(topoOrder, bones, ref, sampleIndex, boneIndex)
	lossyObject := objectSpacePose(topoOrder, bones, lossy, sampleIndex, boneIndex)

	var worst float32
	for axis := 0; axis < 3; axis++ {
		p := transform.CanonicalAxisPoint(axis, shellDistance)
		refPoint := refObject.TransformPoint(p)
		lossyPoint := lossyObject.TransformPoint(p)
		d := refPoint.Sub(lossyPoint).Length()
		if d > worst {
			worst = d
		}
	}

	return worst
}

// objectSpacePose walks from the root down to boneIndex, composing local
// transforms resolved by sample into a single object-space transform.
func objectSpacePose(topoOrder []int, bones []*BoneStreams, sample Sampler, sampleIndex, boneIndex int) transform.QVV {
	// Build the ancestor chain bone-first by walking parent pointers, then
	// compose root-down by iterating it in reverse. Bone hierarchies in this codec are shallow enough
	// (tens of bones) that a direct walk is cheaper than memoizing a table.
	chain := make([]int, 0, 8)
	for i := boneIndex; i >= 0; i = int(bones[i].Desc.ParentIndex) {
		chain = append(chain, i)
		if bones[i].Desc.IsRoot() {
			break
		}
	}

	pose := transform.IdentityQVV
	for i := len(chain) - 1; i >= 0; i-- {
		local := sample(chain[i], sampleIndex)
		pose = transform.ComposeQVV(pose, local)
	}

	return pose
}

// ReferenceSampler returns a Sampler reading each bone's frozen reference
// (original, reformatted, pre-normalization) samples.
func ReferenceSampler(bones []*BoneStreams) Sampler {
	return func(boneIndex, sampleIndex int) transform.QVV {
		bs := bones[boneIndex]

		return transform.QVV{
			Rotation:    quatFromComponents(bs.Rotation.Reference[sampleIndex]),
			Translation: vec3FromComponents(bs.Translation.Reference[sampleIndex]),
			Scale:       vec3FromComponents(bs.Scale.Reference[sampleIndex]),
		}
	}
}

func quatFromComponents(c []float32) transform.Quat {
	return transform.Quat{X: c[0], Y: c[1], Z: c[2], W: c[3]}
}

func vec3FromComponents(c []float32) transform.Vec3 {
	return transform.Vec3{X: c[0], Y: c[1], Z: c[2]}
}
