package models

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// EventRecord represents one DesktopWebUIActionsTracking event as stored in the warehouse.
type EventRecord struct {
	Timestamp   time.Time `json:"dt"`
	Action      string    `json:"action"`
	Wiki        string    `json:"wiki"`
	Name        string    `json:"name"`
	SkinVersion int       `json:"skinversion"`
	IsAnon      bool      `json:"isanon"`
}

// Dimension is a column a report step can group by.
type Dimension string

const (
	DimDate        Dimension = "date"
	DimAction      Dimension = "action"
	DimWiki        Dimension = "wiki"
	DimSkinVersion Dimension = "skinversion"
	DimAnonymous   Dimension = "anonymous_user"
	DimName        Dimension = "name"
)

// DateLayout is the canonical form of a date key value.
const DateLayout = "2006-01-02"

var ErrUnknownDimension = errors.New("unknown dimension")

// Dimensions lists every supported dimension.
var Dimensions = []Dimension{DimDate, DimAction, DimWiki, DimSkinVersion, DimAnonymous, DimName}

// ParseDimension accepts a dimension name, case-insensitively. "skin_version" and "isanon"
// are accepted as aliases.
func ParseDimension(s string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "date", "day":
		return DimDate, nil
	case "action":
		return DimAction, nil
	case "wiki":
		return DimWiki, nil
	case "skinversion", "skin_version":
		return DimSkinVersion, nil
	case "anonymous_user", "isanon", "anonymous":
		return DimAnonymous, nil
	case "name":
		return DimName, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
}

// ParseDimensions parses a list of names, stopping at the first unknown one.
func ParseDimensions(names []string) ([]Dimension, error) {
	out := make([]Dimension, 0, len(names))
	for _, n := range names {
		d, err := ParseDimension(n)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Valid reports whether d is one of the supported dimensions.
func (d Dimension) Valid() bool {
	for _, known := range Dimensions {
		if d == known {
			return true
		}
	}
	return false
}

// Value returns the canonical key value of r for this dimension.
func (d Dimension) Value(r EventRecord) string {
	switch d {
	case DimDate:
		return r.Timestamp.UTC().Format(DateLayout)
	case DimAction:
		return r.Action
	case DimWiki:
		return r.Wiki
	case DimSkinVersion:
		return strconv.Itoa(r.SkinVersion)
	case DimAnonymous:
		return strconv.FormatBool(r.IsAnon)
	case DimName:
		return r.Name
	}
	return ""
}

// GroupCount is one row of a count aggregation. Key is aligned with the dimension list
// the aggregation was grouped by.
type GroupCount struct {
	Key   []string `json:"key"`
	Count int64    `json:"count"`
}

// ReadJSONLines decodes one EventRecord per non-blank line.
func ReadJSONLines(r io.Reader) ([]EventRecord, error) {
	var records []EventRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec EventRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
