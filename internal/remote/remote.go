// Package remote talks to the spreadsheet-backed store that holds the shared
// copy of every collection. Each call moves a whole collection.
package remote

import (
	"context"
	"encoding/json"
	"errors"
)

type Collection string

const (
	Users    Collection = "users"
	Projects Collection = "projects"
	Tasks    Collection = "tasks"
)

var (
	ErrNetworkFailure    = errors.New("remote request failed")
	ErrInvalidPayload    = errors.New("remote payload is not a json array")
	ErrUnknownCollection = errors.New("unknown collection")
)

func (c Collection) IsValid() bool {
	switch c {
	case Users, Projects, Tasks:
		return true
	default:
		return false
	}
}

// All lists the collections in load order.
func All() []Collection {
	return []Collection{Users, Projects, Tasks}
}

// Store reads and replaces whole collections. Fetch returns a JSON array.
type Store interface {
	Fetch(ctx context.Context, c Collection) (json.RawMessage, error)
	SaveAll(ctx context.Context, c Collection, data json.RawMessage) error
}

// ensureArray rejects anything that is not a JSON array, including null.
func ensureArray(b []byte) (json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil || items == nil {
		return nil, ErrInvalidPayload
	}
	return json.RawMessage(b), nil
}
