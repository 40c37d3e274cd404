package trend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/backyonatan-alt/petitionwatch/internal/model"
)

func TestPerMinute(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		prev model.Observation
		curr model.Observation
		want float64
	}{
		{
			name: "steady growth",
			prev: model.Observation{At: t0, Signatures: 100},
			curr: model.Observation{At: t0.Add(10 * time.Minute), Signatures: 150},
			want: 5,
		},
		{
			name: "zero elapsed",
			prev: model.Observation{At: t0, Signatures: 100},
			curr: model.Observation{At: t0, Signatures: 500},
			want: 0,
		},
		{
			name: "sub-minute window",
			prev: model.Observation{At: t0, Signatures: 0},
			curr: model.Observation{At: t0.Add(30 * time.Second), Signatures: 10},
			want: 20,
		},
		{
			name: "no change",
			prev: model.Observation{At: t0, Signatures: 7},
			curr: model.Observation{At: t0.Add(time.Hour), Signatures: 7},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PerMinute(tt.prev, tt.curr), 1e-9)
		})
	}
}

func TestSince(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	o := model.Observation{At: t0}
	now := t0.Add(90 * time.Second)

	assert.Equal(t, 90*time.Second, Since(o, now))
	assert.InDelta(t, 1.5, MinutesSince(o, now), 1e-9)
	assert.Zero(t, MinutesSince(o, t0))
}

func TestLatest(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Zero(t, Latest(nil))
	assert.Zero(t, Latest([]model.Observation{{At: t0, Signatures: 5}}))

	series := []model.Observation{
		{At: t0, Signatures: 0},
		{At: t0.Add(time.Minute), Signatures: 60},
		{At: t0.Add(3 * time.Minute), Signatures: 100},
	}
	assert.InDelta(t, 20, Latest(series), 1e-9)
}
