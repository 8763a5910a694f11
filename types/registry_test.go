package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarIdentityStable(t *testing.T) {
	d, err := NewScalar("f64", 64, true, true)
	require.NoError(t, err)
	assert.Equal(t, Double.ID(), d.ID())
	assert.True(t, SameType(Double, d))
	assert.Equal(t, "f64", d.String())

	// Signedness is part of the identity of integers only.
	u, err := NewScalar("ULong", 64, false, false)
	require.NoError(t, err)
	assert.NotEqual(t, Long.ID(), u.ID())

	f, err := NewScalar("f", 64, true, false)
	require.NoError(t, err)
	assert.Equal(t, Double.ID(), f.ID())

	assert.NotEqual(t, Long.ID(), Double.ID())
	assert.NotEqual(t, Int.ID(), Long.ID())
}

func TestUnsupportedScalarWidth(t *testing.T) {
	_, err := NewScalar("f16", 16, true, true)
	require.ErrorIs(t, err, ErrUnsupportedWidth)

	_, err = NewScalar("i24", 24, false, true)
	require.ErrorIs(t, err, ErrUnsupportedWidth)
}

func TestAggregateIdentity(t *testing.T) {
	a1, err := NewArray(Long, Dims(2, 3))
	require.NoError(t, err)
	a2, err := NewArray(Long, Dims(2, 3))
	require.NoError(t, err)
	assert.Equal(t, a1.ID(), a2.ID())
	assert.Equal(t, IdentityKey(a1), IdentityKey(a2))

	a3, err := NewArray(Long, Dims(3, 2))
	require.NoError(t, err)
	assert.NotEqual(t, a1.ID(), a3.ID())

	// Same element and shape, different kind.
	s1, err := NewSlice(Long, Dims(2, 3))
	require.NoError(t, err)
	assert.NotEqual(t, a1.ID(), s1.ID())

	p1, err := NewPointer(Double, nil)
	require.NoError(t, err)
	p2, err := NewPointer(Double, Shape{Dynamic})
	require.NoError(t, err)
	assert.Equal(t, p1.ID(), p2.ID())

	d1, err := NewSlice(Double, Dims(-1, 3))
	require.NoError(t, err)
	d2, err := NewSlice(Double, Shape{Dynamic, Static(3)})
	require.NoError(t, err)
	assert.Equal(t, d1.ID(), d2.ID())
}

func TestStructureIdentityIsNominal(t *testing.T) {
	fields := []Field{{Name: "x", Type: Double}, {Name: "y", Type: Double}}
	p1, err := NewStructure("Point", fields...)
	require.NoError(t, err)
	p2, err := NewStructure("Point", fields...)
	require.NoError(t, err)
	assert.NotEqual(t, p1.ID(), p2.ID())
	assert.True(t, SameType(p1, p1))

	// Types built over one structure share its identity.
	r1 := NewReference(p1)
	r2 := NewReference(p1)
	assert.Equal(t, r1.ID(), r2.ID())
	assert.NotEqual(t, r1.ID(), NewReference(p2).ID())
}

func TestVectorIdentity(t *testing.T) {
	v1, err := NewVector(Double, 4)
	require.NoError(t, err)
	v2, err := NewVector(Double, 4)
	require.NoError(t, err)
	v3, err := NewVector(Double, 2)
	require.NoError(t, err)
	assert.Equal(t, v1.ID(), v2.ID())
	assert.NotEqual(t, v1.ID(), v3.ID())

	_, err = NewVector(Double, 0)
	require.ErrorIs(t, err, ErrInvalidShape)
	_, err = NewVector(nil, 4)
	require.ErrorIs(t, err, ErrInvalidShape)
}

func TestRegistryLen(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Len())

	id1 := r.intern(descriptor{Kind: IntKind, Width: 64, Signed: true})
	id2 := r.intern(descriptor{Kind: IntKind, Width: 64, Signed: true})
	id3 := r.intern(descriptor{Kind: FloatKind, Width: 64, Float: true, Signed: true})
	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
	assert.NotEqual(t, NoTypeID, id1)
	assert.Equal(t, 2, r.Len())
}

func TestEqualTypes(t *testing.T) {
	assert.True(t, EqualTypes([]Type{Long, Double}, []Type{Long, Double}))
	assert.False(t, EqualTypes([]Type{Long, Double}, []Type{Double, Long}))
	assert.False(t, EqualTypes([]Type{Long}, []Type{Long, Long}))
	assert.True(t, SameType(nil, nil))
	assert.False(t, SameType(Long, nil))
	assert.Equal(t, NoTypeID, IdentityKey(nil))
}

func TestReservedTypeNames(t *testing.T) {
	for _, name := range []string{"Double", "Long", "Index", "Slice", "Vector"} {
		assert.True(t, IsReservedTypeName(name), name)
	}
	assert.False(t, IsReservedTypeName("Point"))

	names := ReservedTypeNames()
	names[0] = "changed"
	assert.True(t, IsReservedTypeName("Double"))
	for name := range scalarsByName {
		assert.True(t, IsReservedTypeName(name), name)
	}
}

func TestStringForms(t *testing.T) {
	s, err := NewSlice(Long, Dims(-1, 3))
	require.NoError(t, err)
	assert.Equal(t, "<Slice [? x [3 x Long]]>", s.String())
	assert.Equal(t, "Slice(Long, shape=(Any, 3))", s.GoString())

	p, err := NewPointer(Double, nil)
	require.NoError(t, err)
	assert.Equal(t, "Pointer(Double, shape=(Any,))", p.GoString())

	v, err := NewVector(Float, 4)
	require.NoError(t, err)
	assert.Equal(t, "<Vector 4 x Float>", v.String())
	assert.Equal(t, "<Reference <Vector 4 x Float>>", NewReference(v).String())
	assert.Equal(t, "<Scalar 'Double'>", Double.GoString())
}
