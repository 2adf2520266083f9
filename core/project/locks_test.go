package project

import (
	"testing"

	"minisite/model"

	"github.com/stretchr/testify/assert"
)

func TestEnforceLocksRestoresLockedConnection(t *testing.T) {
	prev := NewSkeleton("1", 9, testNow)
	prev.Songs.Connections["1-2"] = model.Connection{
		FromSlot: 1, ToSlot: 2, Locked: true,
		BridgeStoreKey: "bridges/orig.wav", BridgeFileName: "orig.wav", ToListenChoice: model.ListenA,
		UpdatedAt: "2024-01-01T00:00:00.000Z",
	}
	next, err := prev.Clone()
	assert.NoError(t, err)
	c := next.Songs.Connections["1-2"]
	c.BridgeStoreKey = "bridges/new.wav"
	c.ToListenChoice = model.ListenB
	c.UpdatedAt = "2024-02-01T00:00:00.000Z"
	next.Songs.Connections["1-2"] = c

	ignored := EnforceLocks(prev, next)

	assert.Equal(t, []string{"songs.connections.1-2"}, ignored)
	assert.Equal(t, prev.Songs.Connections["1-2"], next.Songs.Connections["1-2"])
}

func TestEnforceLocksAllowsExplicitUnlock(t *testing.T) {
	prev := NewSkeleton("1", 9, testNow)
	prev.NFTMix.Glues["1-2"] = model.Connection{FromSlot: 1, ToSlot: 2, Locked: true, BridgeStoreKey: "g/old.wav"}
	next, _ := prev.Clone()
	next.NFTMix.Glues["1-2"] = model.Connection{FromSlot: 1, ToSlot: 2, Locked: false, BridgeStoreKey: "g/new.wav"}

	ignored := EnforceLocks(prev, next)

	assert.Empty(t, ignored)
	assert.Equal(t, "g/new.wav", next.NFTMix.Glues["1-2"].BridgeStoreKey)
}

func TestEnforceLocksRestoresRemovedPair(t *testing.T) {
	prev := NewSkeleton("1", 9, testNow)
	prev.NFTMix.Glues["2-3"] = model.Connection{FromSlot: 2, ToSlot: 3, Locked: true, BridgeStoreKey: "g/2-3.wav"}
	next, _ := prev.Clone()
	delete(next.NFTMix.Glues, "2-3")

	ignored := EnforceLocks(prev, next)

	assert.Equal(t, []string{"nftMix.glues.2-3"}, ignored)
	assert.Contains(t, next.NFTMix.Glues, "2-3")
}

func TestEnforceLocksAlbum(t *testing.T) {
	prev := NewSkeleton("1", 9, testNow)
	prev.Album.Title = "LP"
	prev.Album.PlaylistOrder = []int{1, 2}
	prev.Album.Locks = model.AlbumLocks{Playlist: true, Metadata: true}

	next, _ := prev.Clone()
	next.Album.Title = "Renamed"
	next.Album.PlaylistOrder = []int{2, 1}

	ignored := EnforceLocks(prev, next)

	assert.ElementsMatch(t, []string{"album.playlistOrder", "album.metadata"}, ignored)
	assert.Equal(t, "LP", next.Album.Title)
	assert.Equal(t, []int{1, 2}, next.Album.PlaylistOrder)
}

func TestEnforceLocksIgnoresUnlockedChanges(t *testing.T) {
	prev := NewSkeleton("1", 9, testNow)
	prev.Songs.Connections["1-2"] = model.Connection{FromSlot: 1, ToSlot: 2, BridgeStoreKey: "a"}
	next, _ := prev.Clone()
	next.Songs.Connections["1-2"] = model.Connection{FromSlot: 1, ToSlot: 2, BridgeStoreKey: "b"}
	next.Album.PlaylistOrder = []int{4}

	assert.Empty(t, EnforceLocks(prev, next))
	assert.Equal(t, "b", next.Songs.Connections["1-2"].BridgeStoreKey)
}
