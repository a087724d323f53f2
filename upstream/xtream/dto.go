package xtream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Xtream panels disagree on scalar types: ids and counts arrive as numbers,
// numeric strings, empty strings or null, depending on the panel version.

type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		*f = flexInt(n)
		return nil
	}
	fl, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexInt(int(fl))
	return nil
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	fl, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// ratings like "7.5/10" are not worth failing a whole list over
		*f = 0
		return nil
	}
	*f = flexFloat(fl)
	return nil
}

// isArray reports whether b is a JSON array; panels send [] for "no object".
func isArray(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '['
}

type categoryDTO struct {
	CategoryID   flexInt `json:"category_id"`
	CategoryName string  `json:"category_name"`
}

type seriesDTO struct {
	SeriesID    flexInt   `json:"series_id"`
	CategoryID  flexInt   `json:"category_id"`
	Name        string    `json:"name"`
	Cover       string    `json:"cover"`
	Plot        string    `json:"plot"`
	Genre       string    `json:"genre"`
	ReleaseDate string    `json:"releaseDate"`
	Rating      flexFloat `json:"rating"`
}

type seasonDTO struct {
	ID           flexInt `json:"id"`
	SeasonNumber flexInt `json:"season_number"`
	Name         string  `json:"name"`
	Cover        string  `json:"cover"`
	AirDate      string  `json:"air_date"`
	EpisodeCount flexInt `json:"episode_count"`
}

type episodeInfoDTO struct {
	Plot         string  `json:"plot"`
	DurationSecs flexInt `json:"duration_secs"`
	MovieImage   string  `json:"movie_image"`
}

func (e *episodeInfoDTO) UnmarshalJSON(b []byte) error {
	if isArray(b) {
		*e = episodeInfoDTO{}
		return nil
	}
	type plain episodeInfoDTO
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*e = episodeInfoDTO(p)
	return nil
}

type episodeDTO struct {
	ID                 flexInt        `json:"id"`
	EpisodeNum         flexInt        `json:"episode_num"`
	Title              string         `json:"title"`
	ContainerExtension string         `json:"container_extension"`
	Season             flexInt        `json:"season"`
	Info               episodeInfoDTO `json:"info"`
}

// episodeMap is keyed by season number as a string. Some panels send a
// bare array of episodes instead; those are grouped by their season field.
type episodeMap map[string][]episodeDTO

func (m *episodeMap) UnmarshalJSON(b []byte) error {
	if isArray(b) {
		var list []episodeDTO
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		out := make(episodeMap)
		for _, ep := range list {
			k := strconv.Itoa(int(ep.Season))
			out[k] = append(out[k], ep)
		}
		*m = out
		return nil
	}
	var plain map[string][]episodeDTO
	if err := json.Unmarshal(b, &plain); err != nil {
		return err
	}
	*m = plain
	return nil
}

type seriesInfoDTO struct {
	Seasons  []seasonDTO `json:"seasons"`
	Episodes episodeMap  `json:"episodes"`
}
