package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ListenChoice selects which version of the "to" song follows a bridge.
type ListenChoice string

const (
	ListenA ListenChoice = "A"
	ListenB ListenChoice = "B"
)

// Worksheet is the N×N connections grid edited on the songs page.
type Worksheet struct {
	Connections map[string]Connection `json:"connections"`
}

// NFTMix holds the glue bridges between adjacent songs of the playlist.
type NFTMix struct {
	Glues map[string]Connection `json:"glues"`
}

// Connection is a bridge between an ordered pair of slots.
// While Locked, BridgeFileName, BridgeStoreKey and ToListenChoice are frozen.
type Connection struct {
	FromSlot       int          `json:"fromSlot"`
	ToSlot         int          `json:"toSlot"`
	BridgeFileName string       `json:"bridgeFileName"`
	BridgeStoreKey string       `json:"bridgeStoreKey"`
	Locked         bool         `json:"locked"`
	ToListenChoice ListenChoice `json:"toListenChoice,omitempty"`
	UpdatedAt      string       `json:"updatedAt,omitempty"`
}

// UnmarshalJSON accepts the backend-synced variant that stored the bridge under s3Key.
func (c *Connection) UnmarshalJSON(data []byte) error {
	type plain Connection
	var aux struct {
		plain
		S3Key string `json:"s3Key"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Connection(aux.plain)
	if c.BridgeStoreKey == "" {
		c.BridgeStoreKey = aux.S3Key
	}
	return nil
}

// ConnectionKey is the map key used for the ordered pair (from, to).
func ConnectionKey(from, to int) string {
	return strconv.Itoa(from) + "-" + strconv.Itoa(to)
}

// ParseConnectionKey splits a key produced by ConnectionKey.
func ParseConnectionKey(key string) (from, to int, err error) {
	a, b, ok := strings.Cut(key, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed connection key %q", key)
	}
	if from, err = strconv.Atoi(a); err != nil {
		return 0, 0, fmt.Errorf("malformed connection key %q", key)
	}
	if to, err = strconv.Atoi(b); err != nil {
		return 0, 0, fmt.Errorf("malformed connection key %q", key)
	}
	return from, to, nil
}
