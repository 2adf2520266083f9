package project

import (
	"strings"

	"minisite/model"
)

// TitledSlots returns the catalog slots that carry a title, in slot order.
func TitledSlots(p *model.Project) []int {
	var slots []int
	for _, s := range p.Catalog.Songs {
		if strings.TrimSpace(s.Title) != "" {
			slots = append(slots, s.Slot)
		}
	}
	return slots
}

// Completeness derives every section's complete flag from the document data.
// Stored flags are never consulted.
func Completeness(p *model.Project) map[model.Section]bool {
	titled := TitledSlots(p)
	return map[model.Section]bool{
		model.SectionCatalog: catalogComplete(p, titled),
		model.SectionAlbum:   albumComplete(p),
		model.SectionSongs:   songsComplete(p, titled),
		model.SectionMeta:    metaComplete(p, titled),
		model.SectionNFTMix:  nftMixComplete(p),
	}
}

func catalogComplete(p *model.Project, titled []int) bool {
	if len(titled) == 0 {
		return false
	}
	for _, s := range p.Catalog.Songs {
		if strings.TrimSpace(s.Title) == "" {
			continue
		}
		if s.Files.Album == nil || s.Files.Album.S3Key == "" {
			return false
		}
	}
	return true
}

func albumComplete(p *model.Project) bool {
	a := p.Album
	return strings.TrimSpace(a.Title) != "" &&
		strings.TrimSpace(a.Artist) != "" &&
		strings.TrimSpace(a.ReleaseDate) != "" &&
		len(a.PlaylistOrder) > 0
}

// FromSlotComplete reports whether every pair from the given slot to the other titled slots is locked.
func FromSlotComplete(p *model.Project, from int, titled []int) bool {
	pairs := 0
	for _, to := range titled {
		if to == from {
			continue
		}
		pairs++
		c, ok := p.Songs.Connections[model.ConnectionKey(from, to)]
		if !ok || !c.Locked {
			return false
		}
	}
	return pairs > 0
}

func songsComplete(p *model.Project, titled []int) bool {
	if len(titled) < 2 {
		return false
	}
	for _, from := range titled {
		if !FromSlotComplete(p, from, titled) {
			return false
		}
	}
	return true
}

func metaComplete(p *model.Project, titled []int) bool {
	if len(titled) == 0 {
		return false
	}
	bySlot := make(map[int]model.SongMeta, len(p.Meta.Songs))
	for _, m := range p.Meta.Songs {
		bySlot[m.Slot] = m
	}
	for _, slot := range titled {
		if len(bySlot[slot].Credits.Songwriter) == 0 {
			return false
		}
	}
	return true
}

func nftMixComplete(p *model.Project) bool {
	order := p.Album.PlaylistOrder
	if len(order) < 2 {
		return false
	}
	for i := 0; i+1 < len(order); i++ {
		g, ok := p.NFTMix.Glues[model.ConnectionKey(order[i], order[i+1])]
		if !ok || !g.Locked || g.BridgeStoreKey == "" {
			return false
		}
	}
	return true
}
