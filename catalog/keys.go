package catalog

import "strconv"

// Cache keys, relative to the store's namespace prefix.
const KeyCategories = "categories"

func KeySeries(categoryID int) string { return "series:" + strconv.Itoa(categoryID) }

func KeySeasons(seriesID int) string { return "seasons:" + strconv.Itoa(seriesID) }

func KeyEpisodes(seriesID, seasonID int) string {
	return "episodes:" + strconv.Itoa(seriesID) + ":" + strconv.Itoa(seasonID)
}

func KeyArtwork(seriesID int) string { return "artwork:" + strconv.Itoa(seriesID) }
