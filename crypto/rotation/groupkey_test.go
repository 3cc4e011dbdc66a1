package rotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceEpochDerivesSameKeyViaBlindFactor(t *testing.T) {
	epoch0, err := NewGroupSecret()
	require.NoError(t, err)

	epoch1Sender, blindFactor, err := AdvanceEpoch(epoch0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), epoch1Sender.Epoch)

	epoch1Receiver, err := ApplyBlindFactor(epoch0, blindFactor)
	require.NoError(t, err)

	assert.Equal(t, epoch1Sender.EventKey("group-1"), epoch1Receiver.EventKey("group-1"))
}

func TestEventKeyDiffersAcrossGroups(t *testing.T) {
	epoch0, err := NewGroupSecret()
	require.NoError(t, err)

	keyA := epoch0.EventKey("group-a")
	keyB := epoch0.EventKey("group-b")
	assert.NotEqual(t, *keyA, *keyB)
}

func TestEventKeyDiffersAcrossEpochs(t *testing.T) {
	epoch0, err := NewGroupSecret()
	require.NoError(t, err)
	epoch1, _, err := AdvanceEpoch(epoch0)
	require.NoError(t, err)

	assert.NotEqual(t, *epoch0.EventKey("group-1"), *epoch1.EventKey("group-1"))
}
