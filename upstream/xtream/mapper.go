package xtream

import (
	"sort"
	"strconv"

	"github.com/unkn0wn-root/catalogcache/catalog"
)

func mapCategories(in []categoryDTO) catalog.Categories {
	out := make(catalog.Categories, 0, len(in))
	for _, c := range in {
		out = append(out, catalog.Category{ID: int(c.CategoryID), Name: c.CategoryName})
	}
	return out
}

func mapSeriesList(categoryID int) func([]seriesDTO) catalog.SeriesList {
	return func(in []seriesDTO) catalog.SeriesList {
		out := make(catalog.SeriesList, 0, len(in))
		for _, s := range in {
			cat := int(s.CategoryID)
			if cat == 0 {
				cat = categoryID
			}
			out = append(out, catalog.Series{
				ID:          int(s.SeriesID),
				CategoryID:  cat,
				Name:        s.Name,
				Cover:       s.Cover,
				Plot:        s.Plot,
				Genre:       s.Genre,
				ReleaseDate: s.ReleaseDate,
				Rating:      float64(s.Rating),
			})
		}
		return out
	}
}

func mapSeriesInfo(seriesID int) func(seriesInfoDTO) catalog.SeriesInfo {
	return func(in seriesInfoDTO) catalog.SeriesInfo {
		info := catalog.EmptyOf[catalog.SeriesInfo]()
		for _, s := range in.Seasons {
			id := int(s.SeasonNumber)
			info.Seasons = append(info.Seasons, catalog.Season{
				SeriesID:     seriesID,
				ID:           id,
				Name:         s.Name,
				Cover:        s.Cover,
				AirDate:      s.AirDate,
				EpisodeCount: int(s.EpisodeCount),
			})
		}
		for key, eps := range in.Episodes {
			seasonID, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			list := make(catalog.Episodes, 0, len(eps))
			for _, e := range eps {
				list = append(list, catalog.Episode{
					ID:                 int(e.ID),
					SeriesID:           seriesID,
					SeasonID:           seasonID,
					Number:             int(e.EpisodeNum),
					Title:              e.Title,
					ContainerExtension: e.ContainerExtension,
					Plot:               e.Info.Plot,
					DurationSecs:       int(e.Info.DurationSecs),
					Cover:              e.Info.MovieImage,
				})
			}
			sort.SliceStable(list, func(i, j int) bool { return list[i].Number < list[j].Number })
			info.Episodes[seasonID] = list
		}
		sort.SliceStable(info.Seasons, func(i, j int) bool { return info.Seasons[i].ID < info.Seasons[j].ID })
		return info
	}
}
