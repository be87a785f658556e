package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeritas-project/celer-engine/internal/domain"
)

func TestCollection_RefSharesData(t *testing.T) {
	c := New[float64](domain.MemSpaceHost)
	c.Resize(4)
	ref := c.Ref()

	ref.Set(2, 1.5)
	assert.Equal(t, 1.5, c.At(2))
	assert.Equal(t, domain.OwnershipReference, ref.Ownership())
	assert.Equal(t, domain.OwnershipValue, c.Ownership())
}

func TestCollection_ResizeReferencePanics(t *testing.T) {
	c := New[int32](domain.MemSpaceDevice)
	c.Resize(2)
	ref := c.Ref()
	require.Panics(t, func() { ref.Resize(3) })
}

func TestFillSequence(t *testing.T) {
	c := New[domain.TrackSlotID](domain.MemSpaceHost)
	c.Resize(5)
	FillSequence(c)
	assert.Equal(t, []domain.TrackSlotID{0, 1, 2, 3, 4}, c.Data())
}

func TestCopy_AcrossMemSpaces(t *testing.T) {
	host := FromSlice(domain.MemSpaceHost, []int{1, 2, 3})
	dev := New[int](domain.MemSpaceDevice)
	dev.Resize(3)
	Copy(dev, host)
	assert.Equal(t, []int{1, 2, 3}, dev.Data())
	assert.Equal(t, uint64(3*8), dev.Bytes())
}
