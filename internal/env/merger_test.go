package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayers_Merge(t *testing.T) {
	layers := Layers{
		{"A": "file", "B": "file"},
		{"B": "config", "C": "config"},
		nil,
	}

	got := layers.Merge()

	assert.Equal(t, map[string]string{"A": "file", "B": "config", "C": "config"}, got)
}

func TestOverlay(t *testing.T) {
	tests := []struct {
		name  string
		base  []string
		extra map[string]string
		want  []string
	}{
		{
			name: "no overlay copies base",
			base: []string{"PATH=/bin", "HOME=/root"},
			want: []string{"PATH=/bin", "HOME=/root"},
		},
		{
			name:  "override keeps position",
			base:  []string{"PATH=/bin", "HOME=/root"},
			extra: map[string]string{"PATH": "/usr/bin"},
			want:  []string{"PATH=/usr/bin", "HOME=/root"},
		},
		{
			name:  "new keys appended sorted",
			base:  []string{"PATH=/bin"},
			extra: map[string]string{"ZED": "1", "ALPHA": "2"},
			want:  []string{"PATH=/bin", "ALPHA=2", "ZED=1"},
		},
		{
			name:  "values containing equals",
			base:  []string{"OPTS=a=b"},
			extra: map[string]string{"OPTS": "c=d"},
			want:  []string{"OPTS=c=d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlay(tt.base, tt.extra))
		})
	}
}

func TestOverlay_DoesNotMutateBase(t *testing.T) {
	base := []string{"PATH=/bin"}

	_ = Overlay(base, map[string]string{"PATH": "/other", "NEW": "x"})

	assert.Equal(t, []string{"PATH=/bin"}, base)
}
