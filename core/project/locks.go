package project

import (
	"sort"

	"minisite/model"
)

// EnforceLocks restores locked values in next that differ from prev and returns the paths it restored.
// A value stays frozen while it is locked in both documents; unlocking it in next releases it.
func EnforceLocks(prev, next *model.Project) []string {
	var ignored []string

	ignored = append(ignored, enforceConnectionLocks("songs.connections", prev.Songs.Connections, &next.Songs.Connections)...)
	ignored = append(ignored, enforceConnectionLocks("nftMix.glues", prev.NFTMix.Glues, &next.NFTMix.Glues)...)

	pa, na := &prev.Album, &next.Album
	if pa.Locks.Playlist && na.Locks.Playlist && !equalInts(pa.PlaylistOrder, na.PlaylistOrder) {
		na.PlaylistOrder = append([]int{}, pa.PlaylistOrder...)
		ignored = append(ignored, "album.playlistOrder")
	}
	if pa.Locks.Metadata && na.Locks.Metadata &&
		(pa.Title != na.Title || pa.Artist != na.Artist || pa.ReleaseDate != na.ReleaseDate) {
		na.Title, na.Artist, na.ReleaseDate = pa.Title, pa.Artist, pa.ReleaseDate
		ignored = append(ignored, "album.metadata")
	}
	return ignored
}

func enforceConnectionLocks(field string, prev map[string]model.Connection, next *map[string]model.Connection) []string {
	if *next == nil {
		*next = make(map[string]model.Connection)
	}

	keys := make([]string, 0, len(prev))
	for k, c := range prev {
		if c.Locked {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var ignored []string
	for _, key := range keys {
		p := prev[key]
		n, ok := (*next)[key]
		switch {
		case !ok:
			// A locked pair cannot be removed.
			(*next)[key] = p
			ignored = append(ignored, field+"."+key)
		case !n.Locked:
			// explicit unlock
		case n.BridgeStoreKey != p.BridgeStoreKey || n.BridgeFileName != p.BridgeFileName || n.ToListenChoice != p.ToListenChoice:
			n.BridgeStoreKey = p.BridgeStoreKey
			n.BridgeFileName = p.BridgeFileName
			n.ToListenChoice = p.ToListenChoice
			n.UpdatedAt = p.UpdatedAt
			(*next)[key] = n
			ignored = append(ignored, field+"."+key)
		}
	}
	return ignored
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
