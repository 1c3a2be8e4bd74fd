package kml

import (
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/kgm-ocak/ocak-map/internal/geo"
)

var (
	imgSrcRe      = regexp.MustCompile(`(?i)<img\b[^>]*?\bsrc\s*=\s*["']([^"']+)["']`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
	commaSpacesRe = regexp.MustCompile(`\s*,\s*`)
)

// xmlPlacemark mirrors the subset of a KML Placemark we read.
type xmlPlacemark struct {
	Name        *string         `xml:"name"`
	Description *xmlDescription `xml:"description"`
	Point       *struct {
		Coordinates string `xml:"coordinates"`
	} `xml:"Point"`
}

// xmlDescription keeps the raw inner XML so CDATA sections, escaped HTML and
// HTML written as child elements all survive, even when mixed.
type xmlDescription struct {
	Inner string `xml:",innerxml"`
}

const (
	cdataOpen  = "<![CDATA["
	cdataClose = "]]>"
)

// content returns the description as HTML: CDATA sections verbatim, the
// rest with XML escapes resolved.
func (d *xmlDescription) content() string {
	if d == nil {
		return ""
	}
	var b strings.Builder
	rest := d.Inner
	for {
		start := strings.Index(rest, cdataOpen)
		if start < 0 {
			b.WriteString(html.UnescapeString(rest))
			return b.String()
		}
		b.WriteString(html.UnescapeString(rest[:start]))
		rest = rest[start+len(cdataOpen):]

		end := strings.Index(rest, cdataClose)
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:end])
		rest = rest[end+len(cdataClose):]
	}
}

// ParseKML reads every Placemark in the document, whatever its nesting
// under kml/Document/Folder. Placemarks without a usable Point are skipped.
func ParseKML(r io.Reader) (*Result, error) {
	log := zap.L().With(zap.String("component", "kml.parse"))

	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "kml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	res := &Result{Placemarks: []Placemark{}}
	sawElement := false
	index := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(ErrMalformedDocument, "kml: read token: %v", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawElement = true
		if se.Name.Local != "Placemark" {
			continue
		}

		var raw xmlPlacemark
		if err := dec.DecodeElement(&raw, &se); err != nil {
			return nil, eris.Wrapf(ErrMalformedDocument, "kml: decode placemark: %v", err)
		}
		index++

		pm, reason := normalize(raw, index)
		if reason != "" {
			res.Skipped++
			log.Debug("skipping placemark",
				zap.Int("index", index),
				zap.String("name", pm.Name),
				zap.String("reason", reason),
			)
			continue
		}
		res.Placemarks = append(res.Placemarks, pm)
	}

	if !sawElement {
		return nil, eris.Wrap(ErrMalformedDocument, "kml: no xml elements found")
	}

	log.Debug("parsed document",
		zap.Int("placemarks", len(res.Placemarks)),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// normalize converts a decoded placemark. A non-empty reason means the
// placemark must be skipped.
func normalize(raw xmlPlacemark, index int) (Placemark, string) {
	pm := Placemark{Name: fallbackName(index)}
	if raw.Name != nil && strings.TrimSpace(*raw.Name) != "" {
		pm.Name = *raw.Name
	}

	pm.Description, pm.ImageURL = cleanDescription(raw.Description.content())

	if raw.Point == nil {
		return pm, "no point geometry"
	}
	c, ok := parsePointCoordinates(raw.Point.Coordinates)
	if !ok {
		return pm, "malformed coordinates"
	}
	pm.Latitude = c.Lat
	pm.Longitude = c.Lng
	return pm, ""
}

func fallbackName(index int) string {
	return fmt.Sprintf("Unnamed placemark #%d", index)
}

// cleanDescription extracts the first <img src> and strips every tag.
func cleanDescription(desc string) (text, imageURL string) {
	if desc == "" {
		return "", ""
	}
	if m := imgSrcRe.FindStringSubmatch(desc); m != nil {
		imageURL = strings.TrimSpace(m[1])
	}
	text = strings.TrimSpace(tagRe.ReplaceAllString(desc, ""))
	return text, imageURL
}

// parsePointCoordinates reads "lon,lat[,alt]". Only the first tuple counts.
func parsePointCoordinates(raw string) (geo.Coordinate, bool) {
	fields := strings.Fields(commaSpacesRe.ReplaceAllString(strings.TrimSpace(raw), ","))
	if len(fields) == 0 {
		return geo.Coordinate{}, false
	}
	parts := strings.Split(fields[0], ",")
	if len(parts) < 2 {
		return geo.Coordinate{}, false
	}
	lng, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return geo.Coordinate{}, false
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return geo.Coordinate{}, false
	}
	c := geo.Coordinate{Lat: lat, Lng: lng}
	return c, c.Valid()
}
