// Package model defines the entities managed by the kidscard data engine.
//
// Entities are flat records with last-write-wins semantics: every field can
// be overwritten independently and the updated_at timestamp resolves
// conflicts between local and remote versions. Timestamps are milliseconds
// since the Unix epoch so they round-trip through the remote store without
// precision loss.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncStatus tracks whether an entity's local state has been acknowledged
// by the remote store.
type SyncStatus string

const (
	// StatusSynced means the entity is confirmed identical to its
	// last-pushed remote counterpart.
	StatusSynced SyncStatus = "synced"
	// StatusPending means the local state has not yet been acknowledged
	// by the remote.
	StatusPending SyncStatus = "pending"
	// StatusConflict means the entity lost a merge against a newer remote
	// version.
	StatusConflict SyncStatus = "conflict"
)

// Color is one of the fixed palette values available for categories.
type Color string

const (
	ColorRed    Color = "red"
	ColorOrange Color = "orange"
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorPurple Color = "purple"
	ColorPink   Color = "pink"
	ColorTeal   Color = "teal"
)

// Palette returns the full set of valid category colors.
func Palette() []Color {
	return []Color{
		ColorRed, ColorOrange, ColorYellow, ColorGreen,
		ColorBlue, ColorPurple, ColorPink, ColorTeal,
	}
}

// Valid reports whether the color is part of the fixed palette.
func (c Color) Valid() bool {
	for _, p := range Palette() {
		if c == p {
			return true
		}
	}
	return false
}

// Category groups flashcards for display. Order defines the display sort.
type Category struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Icon       string     `json:"icon" yaml:"icon"`
	Color      Color      `json:"color" yaml:"color"`
	Order      int        `json:"order" yaml:"order"`
	CreatedAt  int64      `json:"created_at" yaml:"created_at"`
	UpdatedAt  int64      `json:"updated_at" yaml:"updated_at"`
	SyncStatus SyncStatus `json:"sync_status" yaml:"sync_status"`
}

// EntityID returns the category's identity for merge purposes.
func (c Category) EntityID() string { return c.ID }

// Modified returns the last-modified timestamp in epoch milliseconds.
func (c Category) Modified() int64 { return c.UpdatedAt }

// Validate checks that the category has valid field values.
func (c Category) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Color != "" && !c.Color.Valid() {
		return fmt.Errorf("color %q is not in the palette", c.Color)
	}
	return nil
}

// Flashcard is a single word card. CategoryID must reference an existing
// category; the resolver guarantees this after every merge, and deleting a
// category cascades to its flashcards.
type Flashcard struct {
	ID         string     `json:"id" yaml:"id"`
	Word       string     `json:"word" yaml:"word"`
	ImageURL   string     `json:"image_url" yaml:"image_url"`
	CategoryID string     `json:"category_id" yaml:"category_id"`
	CreatedAt  int64      `json:"created_at" yaml:"created_at"`
	UpdatedAt  int64      `json:"updated_at" yaml:"updated_at"`
	SyncStatus SyncStatus `json:"sync_status" yaml:"sync_status"`
}

// EntityID returns the flashcard's identity for merge purposes.
func (f Flashcard) EntityID() string { return f.ID }

// Modified returns the last-modified timestamp in epoch milliseconds.
func (f Flashcard) Modified() int64 { return f.UpdatedAt }

// Validate checks that the flashcard has valid field values.
func (f Flashcard) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("id is required")
	}
	if f.Word == "" {
		return fmt.Errorf("word is required")
	}
	if f.CategoryID == "" {
		return fmt.Errorf("category_id is required")
	}
	return nil
}

// Settings is the process-wide singleton preferences record. It has no
// identity or versioning; the last write overwrites.
type Settings struct {
	Autoplay   bool    `json:"autoplay" yaml:"autoplay"`
	VoiceSpeed float64 `json:"voice_speed" yaml:"voice_speed"`
	Theme      string  `json:"theme" yaml:"theme"`
	CloudSync  bool    `json:"cloud_sync" yaml:"cloud_sync"`
}

// DefaultSettings returns the first-run settings record.
func DefaultSettings() Settings {
	return Settings{
		Autoplay:   true,
		VoiceSpeed: 1.0,
		Theme:      "light",
		CloudSync:  false,
	}
}

// NewID generates a fresh entity ID.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id is a well-formed UUID. Legacy installs used
// counter-based ids; the store migrates those on first read.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// LegacyID deterministically maps a non-UUID legacy id to a UUID, so that
// repeated migrations of the same dataset produce the same identities.
func LegacyID(old string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(old)).String()
}

// Now returns the current time in epoch milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// DefaultCategories returns the starter categories seeded on first run.
// They are created pending so an enabled cloud account receives them on
// the first push.
func DefaultCategories(now int64) []Category {
	names := []struct {
		name  string
		icon  string
		color Color
	}{
		{"Animals", "🐶", ColorGreen},
		{"Food", "🍎", ColorRed},
		{"Colors", "🎨", ColorBlue},
	}
	cats := make([]Category, 0, len(names))
	for i, n := range names {
		cats = append(cats, Category{
			ID:         NewID(),
			Name:       n.name,
			Icon:       n.icon,
			Color:      n.color,
			Order:      i,
			CreatedAt:  now,
			UpdatedAt:  now,
			SyncStatus: StatusPending,
		})
	}
	return cats
}
