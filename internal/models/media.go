package models

import (
	"slices"
	"time"
)

// MediaType classifies a tracked item.
type MediaType string

const (
	MediaTypeMovie    MediaType = "MOVIE"
	MediaTypeTVSeries MediaType = "TV_SERIES"
	MediaTypeAnime    MediaType = "ANIME"
	MediaTypeManga    MediaType = "MANGA"
	MediaTypeBook     MediaType = "BOOK"
	MediaTypeGame     MediaType = "GAME"
)

var MediaTypes = []MediaType{
	MediaTypeMovie, MediaTypeTVSeries, MediaTypeAnime,
	MediaTypeManga, MediaTypeBook, MediaTypeGame,
}

func (t MediaType) Valid() bool {
	return slices.Contains(MediaTypes, t)
}

// MediaSourceType names the external catalogue an item was looked up from.
type MediaSourceType string

const (
	SourceTMDB        MediaSourceType = "TMDB"
	SourceIGDB        MediaSourceType = "IGDB"
	SourceMyAnimeList MediaSourceType = "MY_ANIME_LIST"
)

var MediaSourceTypes = []MediaSourceType{SourceTMDB, SourceIGDB, SourceMyAnimeList}

func (s MediaSourceType) Valid() bool {
	return slices.Contains(MediaSourceTypes, s)
}

// CompletionSet holds the instants a user finished an item, sorted ascending
// without duplicates.
type CompletionSet []time.Time

// NewCompletionSet normalizes and de-duplicates ts.
func NewCompletionSet(ts ...time.Time) CompletionSet {
	var s CompletionSet
	for _, t := range ts {
		s.Add(t)
	}
	if s == nil {
		s = CompletionSet{}
	}
	return s
}

// Add inserts t and reports whether the set changed.
func (s *CompletionSet) Add(t time.Time) bool {
	t = NormalizeInstant(t)
	i, found := slices.BinarySearchFunc(*s, t, func(a, b time.Time) int { return a.Compare(b) })
	if found {
		return false
	}
	*s = slices.Insert(*s, i, t)
	return true
}

func (s CompletionSet) Contains(t time.Time) bool {
	_, found := slices.BinarySearchFunc(s, NormalizeInstant(t), func(a, b time.Time) int { return a.Compare(b) })
	return found
}

// Media is a tracked item owned by exactly one user.
type Media struct {
	ID                   int64            `json:"id"`
	UserID               int64            `json:"-"`
	Title                string           `json:"title"`
	Type                 MediaType        `json:"type"`
	CompletionTimestamps CompletionSet    `json:"completionTimestamps"`
	ImageURL             *string          `json:"imageUrl"`
	SourceType           *MediaSourceType `json:"sourceType"`
	SourceID             *string          `json:"sourceId"`
	CreatedAt            time.Time        `json:"-"`
}

// Equal compares persisted identity only.
func (m *Media) Equal(other *Media) bool {
	if m == nil || other == nil || m.ID == 0 || other.ID == 0 {
		return false
	}
	return m.ID == other.ID
}

// Clone returns a deep copy.
func (m *Media) Clone() *Media {
	c := *m
	c.CompletionTimestamps = slices.Clone(m.CompletionTimestamps)
	if m.ImageURL != nil {
		v := *m.ImageURL
		c.ImageURL = &v
	}
	if m.SourceType != nil {
		v := *m.SourceType
		c.SourceType = &v
	}
	if m.SourceID != nil {
		v := *m.SourceID
		c.SourceID = &v
	}
	return &c
}

// MediaAddRequest is the body of POST /media/add.
type MediaAddRequest struct {
	Title               string           `json:"title" binding:"required,notblank,min=5"`
	Type                MediaType        `json:"type" binding:"required,oneof=MOVIE TV_SERIES ANIME MANGA BOOK GAME"`
	CompletionTimestamp string           `json:"completionTimestamp" binding:"required"`
	ImageURL            *string          `json:"imageUrl"`
	SourceType          *MediaSourceType `json:"sourceType" binding:"omitempty,oneof=TMDB IGDB MY_ANIME_LIST"`
	SourceID            *string          `json:"sourceId"`
}

// MediaUpdateRequest replaces every mutable field of an item.
type MediaUpdateRequest struct {
	ID                   int64            `json:"id" binding:"required"`
	Title                string           `json:"title" binding:"required,notblank,min=5"`
	Type                 MediaType        `json:"type" binding:"required,oneof=MOVIE TV_SERIES ANIME MANGA BOOK GAME"`
	CompletionTimestamps []string         `json:"completionTimestamps" binding:"required"`
	ImageURL             *string          `json:"imageUrl"`
	SourceType           *MediaSourceType `json:"sourceType" binding:"omitempty,oneof=TMDB IGDB MY_ANIME_LIST"`
	SourceID             *string          `json:"sourceId"`
}

// MediaAddRewatchRequest appends one completion instant.
type MediaAddRewatchRequest struct {
	ID                  int64  `json:"id" binding:"required"`
	CompletionTimestamp string `json:"completionTimestamp" binding:"required"`
}

// MediaDeleteRequest identifies the item to delete.
type MediaDeleteRequest struct {
	ID int64 `json:"id" binding:"required"`
}

// MediaListResponse is the body of GET /media/.
type MediaListResponse struct {
	Medias []*Media `json:"medias"`
}
