// Package text provides tracklist extraction from free-text video descriptions.
package text

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// tracklistLineRegex matches "[mm:ss] Title", "[mm:ss]Title", "mm:ss Title",
// "h:mm:ss Title" and "mm:ss - Title". A bare timestamp needs whitespace before
// the title. Only the matched prefix is stripped, per line.
var tracklistLineRegex = regexp.MustCompile(
	`^\s*\[?(?:(?P<hours>\d{1,2}):)?(?P<minutes>\d{1,2}):(?P<seconds>\d{2})(?:\]\s*|\s+)(?:[-–—|]\s+)?(?P<title>\S.*)$`)

var (
	hoursGroup   = tracklistLineRegex.SubexpIndex("hours")
	minutesGroup = tracklistLineRegex.SubexpIndex("minutes")
	secondsGroup = tracklistLineRegex.SubexpIndex("seconds")
	titleGroup   = tracklistLineRegex.SubexpIndex("title")
)

// Entry is one tracklist line: its timestamp and the title that follows it.
type Entry struct {
	Offset time.Duration
	Title  string
}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the ordered entries of the tracklist embedded in
// description. An empty result means the video is a single track.
func (e *Extractor) Extract(description string) []Entry {
	if strings.TrimSpace(description) == "" {
		return nil
	}

	description = norm.NFC.String(description)

	var entries []Entry
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimRight(line, "\r")

		matches := tracklistLineRegex.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		title := strings.TrimSpace(matches[titleGroup])
		if title == "" {
			continue
		}

		entries = append(entries, Entry{
			Offset: parseOffset(matches[hoursGroup], matches[minutesGroup], matches[secondsGroup]),
			Title:  title,
		})
	}

	return entries
}

func parseOffset(hours, minutes, seconds string) time.Duration {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}
