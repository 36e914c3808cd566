package driver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subzero-lang/subzero/internal/ssa"
)

// diamond: entry -> {left, right} -> join. Reverse postorder must place
// entry first and join last, with left/right somewhere in between.
func TestLayoutFrameReversePostorderDiamond(t *testing.T) {
	f := ssa.NewFunc("f")

	entry := ssa.NewNode(0)
	left := ssa.NewNode(1)
	right := ssa.NewNode(2)
	join := ssa.NewNode(3)

	f.AddNode(entry)
	f.AddNode(left)
	f.AddNode(right)
	f.AddNode(join)

	entry.AddSucc(left)
	entry.AddSucc(right)
	left.AddSucc(join)
	right.AddSucc(join)

	frame := LayoutFrame(f, 0)
	require.Len(t, frame.Order, 4)
	require.Equal(t, entry.Id, frame.Order[0].Id)
	require.Equal(t, join.Id, frame.Order[3].Id)

	positions := map[int]int{}
	for i, n := range frame.Order {
		positions[n.Id] = i
	}
	require.Less(t, positions[left.Id], positions[join.Id])
	require.Less(t, positions[right.Id], positions[join.Id])
}

func TestLayoutFrameSingleNode(t *testing.T) {
	f := ssa.NewFunc("f")
	entry := ssa.NewNode(0)
	f.AddNode(entry)

	frame := LayoutFrame(f, 32)
	require.Len(t, frame.Order, 1)
	require.Equal(t, int32(32), frame.FrameBytes)
	require.True(t, frame.UsesFrameBase)
}
