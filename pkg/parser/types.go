package parser

import (
	"fmt"
	"strings"
	"time"
)

// DataType is one extractable data category. The string values double as
// report file names and media subdirectory names.
type DataType string

const (
	DataAll      DataType = "all"
	DataMessages DataType = "messages"
	DataPictures DataType = "pictures"
	DataGifs     DataType = "gifs"
	DataVideos   DataType = "videos"
	DataFiles    DataType = "files"
	DataLinks    DataType = "links"
)

// ReportTypes lists every concrete data type in report order
var ReportTypes = []DataType{
	DataMessages,
	DataPictures,
	DataGifs,
	DataVideos,
	DataFiles,
	DataLinks,
}

// ParseDataType converts a user supplied string to a DataType
func ParseDataType(s string) (DataType, error) {
	switch DataType(strings.ToLower(strings.TrimSpace(s))) {
	case DataAll:
		return DataAll, nil
	case DataMessages:
		return DataMessages, nil
	case DataPictures:
		return DataPictures, nil
	case DataGifs:
		return DataGifs, nil
	case DataVideos:
		return DataVideos, nil
	case DataFiles:
		return DataFiles, nil
	case DataLinks:
		return DataLinks, nil
	}
	return "", fmt.Errorf("unknown data type %q (valid: all, messages, pictures, gifs, videos, files, links)", s)
}

// NormalizeTypes expands "all", drops duplicates and returns the result
// in report order
func NormalizeTypes(types []DataType) []DataType {
	wanted := make(map[DataType]bool, len(types))
	for _, t := range types {
		if t == DataAll {
			for _, concrete := range ReportTypes {
				wanted[concrete] = true
			}
			continue
		}
		wanted[t] = true
	}

	normalized := make([]DataType, 0, len(wanted))
	for _, t := range ReportTypes {
		if wanted[t] {
			normalized = append(normalized, t)
		}
	}
	return normalized
}

// Downloadable reports whether artifacts of this type can be fetched to
// disk. Messages and links only ever appear in reports.
func (d DataType) Downloadable() bool {
	switch d {
	case DataPictures, DataGifs, DataVideos, DataFiles:
		return true
	}
	return false
}

// Artifact is one extracted item. Kind selects which payload fields are
// meaningful: messages carry Text, media carry URL and Filename, links
// carry URL alone.
type Artifact struct {
	Kind       DataType
	MessageID  string
	Timestamp  time.Time
	SenderID   string
	SenderName string

	Text     string
	URL      string
	Filename string
}
