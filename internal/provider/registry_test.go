package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMount struct {
	prefix string
	ready  bool
}

func (m stubMount) Prefix() string { return m.prefix }
func (m stubMount) Label() string  { return "stub" + m.prefix }
func (m stubMount) Ready() bool    { return m.ready }

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(stubMount{prefix: IntPathPrefix, ready: true}))
	assert.Error(t, r.Register(stubMount{prefix: IntPathPrefix, ready: true}), "duplicate prefix")
	assert.Error(t, r.Register(stubMount{prefix: AnyPathPrefix, ready: true}), "alias prefix")
	assert.Error(t, r.Register(stubMount{prefix: "/usb", ready: true}), "unknown prefix")

	m, ok := r.Get(IntPathPrefix)
	require.True(t, ok)
	assert.Equal(t, IntPathPrefix, m.Prefix())

	_, ok = r.Get(ExtPathPrefix)
	assert.False(t, ok)
}

func TestRegistry_AnyAlias(t *testing.T) {
	tests := []struct {
		name     string
		mounts   []stubMount
		expected string
	}{
		{
			name:     "external ready",
			mounts:   []stubMount{{IntPathPrefix, true}, {ExtPathPrefix, true}},
			expected: ExtPathPrefix,
		},
		{
			name:     "external missing card",
			mounts:   []stubMount{{IntPathPrefix, true}, {ExtPathPrefix, false}},
			expected: IntPathPrefix,
		},
		{
			name:     "internal only",
			mounts:   []stubMount{{IntPathPrefix, true}},
			expected: IntPathPrefix,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for _, m := range tt.mounts {
				require.NoError(t, r.Register(m))
			}
			m, ok := r.Get(AnyPathPrefix)
			require.True(t, ok)
			assert.Equal(t, tt.expected, m.Prefix())
		})
	}

	_, ok := NewRegistry().Get(AnyPathPrefix)
	assert.False(t, ok, "empty registry has no alias target")
}

func TestRegistry_AllOrdered(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubMount{prefix: ExtPathPrefix}))
	require.NoError(t, r.Register(stubMount{prefix: IntPathPrefix}))

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, IntPathPrefix, all[0].Prefix())
	assert.Equal(t, ExtPathPrefix, all[1].Prefix())
}
