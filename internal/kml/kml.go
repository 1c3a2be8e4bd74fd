// Package kml extracts point placemarks from KML documents and KMZ archives.
//
// The package works purely on in-memory buffers and never touches the store,
// so callers decide what to do with the normalized placemarks.
package kml

import (
	"bytes"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrUnsupportedFileFormat is returned for files that are neither .kml nor .kmz.
	ErrUnsupportedFileFormat = eris.New("unsupported file format")

	// ErrNoKMLInArchive is returned when a KMZ archive holds no .kml entry.
	ErrNoKMLInArchive = eris.New("no kml document in archive")

	// ErrMalformedDocument is returned when the KML cannot be read as XML
	// or the KMZ cannot be read as a zip archive.
	ErrMalformedDocument = eris.New("malformed document")
)

// Format identifies the container type of an uploaded file.
type Format string

const (
	FormatKML Format = "kml"
	FormatKMZ Format = "kmz"
)

// Placemark is a normalized point record extracted from a KML placemark.
type Placemark struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
}

// Result holds the placemarks produced from one document.
type Result struct {
	Placemarks []Placemark `json:"placemarks"`
	// Skipped counts placemarks dropped for missing or malformed coordinates.
	Skipped int `json:"skipped"`
	// Source is the document name: the upload name for KML, the archive
	// entry path for KMZ.
	Source string `json:"source"`
}

// Empty reports whether no valid placemark was found.
func (r *Result) Empty() bool {
	return r == nil || len(r.Placemarks) == 0
}

// DetectFormat maps a file name to its format by extension, case-insensitively.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(path.Ext(filename)) {
	case ".kml":
		return FormatKML, nil
	case ".kmz":
		return FormatKMZ, nil
	default:
		return "", eris.Wrapf(ErrUnsupportedFileFormat, "kml: %q", filename)
	}
}

// ParseFile parses data as KML or KMZ depending on the file extension.
func ParseFile(filename string, data []byte) (*Result, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	if format == FormatKMZ {
		return ParseKMZ(data)
	}

	res, err := ParseKML(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	res.Source = filename
	return res, nil
}
