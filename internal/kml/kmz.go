package kml

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// maxKMLEntryBytes caps how much of the selected archive entry is read.
const maxKMLEntryBytes = 64 << 20

// ParseKMZ unpacks a KMZ archive in memory and parses the first entry whose
// lowercased path ends in ".kml".
func ParseKMZ(data []byte) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrapf(ErrMalformedDocument, "kml: open kmz archive: %v", err)
	}

	entry := firstKMLEntry(zr)
	if entry == nil {
		return nil, eris.Wrapf(ErrNoKMLInArchive, "kml: %d entries scanned", len(zr.File))
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, eris.Wrapf(ErrMalformedDocument, "kml: open entry %q: %v", entry.Name, err)
	}
	defer rc.Close() //nolint:errcheck

	res, err := ParseKML(io.LimitReader(rc, maxKMLEntryBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "kml: entry %q", entry.Name)
	}
	res.Source = entry.Name
	return res, nil
}

// firstKMLEntry returns the first non-directory entry, in archive order,
// whose lowercased path ends in ".kml".
func firstKMLEntry(zr *zip.Reader) *zip.File {
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(f.Name), ".kml") {
			return f
		}
	}
	return nil
}
