// Package character implements character listing, creation, and the
// enterWorld critical path: duplicate detection, stale-entity
// reclamation, spawn grounding, and the ordered packet sequence a
// freshly spawned client expects.
package character

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hyperscape/coreserver/internal/model"
	"github.com/hyperscape/coreserver/internal/network"
)

// Character is the persisted document for one character, stored under
// document kind "character" keyed by character id.
type Character struct {
	ID            string            `json:"id"`
	AccountID     string            `json:"accountId"`
	Name          string            `json:"name"`
	Position      model.Vector3     `json:"position"`
	Skills        map[string]int    `json:"skills"`
	AutoRetaliate bool              `json:"autoRetaliate"`
	Equipment     map[string]string `json:"equipment"`
}

// Store is the persistence surface Selection needs, satisfied by
// storage.Store[Character].
type Store interface {
	Load(ctx context.Context, id string) (Character, error)
	Save(ctx context.Context, id, ownerAccount string, value Character) error
	ListByOwner(ctx context.Context, ownerAccount string) ([]string, error)
}

const (
	minNameLength = 3
	maxNameLength = 50
	defaultName   = "Adventurer"
)

// ValidateName trims and checks a proposed character name, returning
// the cleaned name or an error. Valid names are 3-50 characters of
// letters, digits, and spaces.
func ValidateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		name = defaultName
	}
	if len(name) < minNameLength || len(name) > maxNameLength {
		return "", fmt.Errorf("character: name must be %d-%d characters", minNameLength, maxNameLength)
	}
	for _, r := range name {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !alnum && r != ' ' {
			return "", fmt.Errorf("character: name may only contain letters, digits, and spaces")
		}
	}
	return name, nil
}

// ListCharacters returns the summaries network.ConnectionHandler needs
// for the handshake snapshot. Implements network.CharacterLister.
type Lister struct {
	store Store
}

// NewLister wraps a Store for use as a network.CharacterLister.
func NewLister(store Store) *Lister { return &Lister{store: store} }

func (l *Lister) ListCharacters(ctx context.Context, accountID string) ([]network.CharacterSummary, error) {
	ids, err := l.store.ListByOwner(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("character: listing for account %q: %w", accountID, err)
	}
	out := make([]network.CharacterSummary, 0, len(ids))
	for _, id := range ids {
		c, err := l.store.Load(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, network.CharacterSummary{ID: c.ID, Name: c.Name})
	}
	return out, nil
}

// CreateCharacter validates name and persists a freshly rolled
// character owned by accountID.
func CreateCharacter(ctx context.Context, store Store, accountID, rawName string, defaultSpawn model.Vector3) (Character, error) {
	name, err := ValidateName(rawName)
	if err != nil {
		return Character{}, err
	}
	c := Character{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Name:      name,
		Position:  defaultSpawn,
		Skills:    map[string]int{},
		Equipment: map[string]string{},
	}
	if err := store.Save(ctx, c.ID, accountID, c); err != nil {
		return Character{}, fmt.Errorf("character: saving %q: %w", c.ID, err)
	}
	return c, nil
}

// ErrNotOwned is returned by SelectCharacter when the character does
// not belong to the verified account.
var ErrNotOwned = fmt.Errorf("character: not owned by account")

// SelectCharacter confirms characterID belongs to accountID before the
// client proceeds to enterWorld, never trusting a client-asserted
// owner.
func SelectCharacter(ctx context.Context, store Store, accountID, characterID string) (Character, error) {
	c, err := store.Load(ctx, characterID)
	if err != nil {
		return Character{}, err
	}
	if c.AccountID != accountID {
		return Character{}, ErrNotOwned
	}
	return c, nil
}

// loadingWatchdog is how long a spawned character may stay in
// isLoading before the server forces it false regardless of whether
// the client ever sent clientReady.
const loadingWatchdog = 30 * time.Second
