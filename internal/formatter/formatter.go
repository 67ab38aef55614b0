// Package formatter renders catalog results, watchlists and room queues as JSON, CSV,
// Markdown or plain text.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

// ImageBaseURL prefixes poster and profile paths.
const ImageBaseURL = "https://image.tmdb.org/t/p/w500"

// Format is an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts a format name or its common abbreviation.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: unknown format %q (want text, json, csv or markdown)", shared.ErrInvalidArgument, s)
}

// ImageURL turns a poster path into an absolute URL. Empty paths stay empty.
func ImageURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return ImageBaseURL + path
}

func year(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}

func rating(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// resultLine is "Title (Year) [type] ★ 7.5" with empty parts left out.
func resultLine(item models.ResultItem) string {
	var b strings.Builder
	b.WriteString(item.DisplayTitle())
	if y := year(item.ReleaseDate); y != "" {
		fmt.Fprintf(&b, " (%s)", y)
	}
	if item.MediaType != "" {
		fmt.Fprintf(&b, " [%s]", item.MediaType)
	}
	if r := rating(item.VoteAverage); r != "" {
		fmt.Fprintf(&b, " ★ %s", r)
	}
	return b.String()
}

// Results renders a list of catalog results under heading.
func Results(format Format, heading string, items []models.ResultItem) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(items, true)
	case FormatCSV:
		rows := make([][]string, len(items))
		for i, item := range items {
			rows[i] = []string{
				strconv.FormatInt(item.ID, 10),
				string(item.MediaType),
				item.DisplayTitle(),
				year(item.ReleaseDate),
				rating(item.VoteAverage),
				ImageURL(item.Image()),
			}
		}
		return writeCSV([]string{"ID", "Type", "Title", "Year", "Rating", "Image"}, rows)
	case FormatMarkdown:
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "# %s\n\n", heading)
		fmt.Fprintf(&buf, "**Results**: %d\n\n", len(items))
		for i, item := range items {
			fmt.Fprintf(&buf, "%d. %s\n", i+1, resultLine(item))
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "%s: %d results\n\n", heading, len(items))
		for i, item := range items {
			fmt.Fprintf(&buf, "%d. %s  #%d\n", i+1, resultLine(item), item.ID)
		}
		return buf.Bytes(), nil
	}
}

// Detail renders a single title. imageFilename, when set, is embedded as the Markdown
// cover.
func Detail(format Format, detail models.Detail, imageFilename string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(detail, true)
	case FormatCSV:
		return nil, fmt.Errorf("%w: csv is not available for a single title", shared.ErrInvalidArgument)
	}

	genres := make([]string, len(detail.Genres))
	for i, g := range detail.Genres {
		genres[i] = g.Name
	}
	providers := make([]string, len(detail.Providers))
	for i, p := range detail.Providers {
		providers[i] = p.Name
	}

	var buf bytes.Buffer
	if format == FormatMarkdown {
		fmt.Fprintf(&buf, "# %s\n\n", detail.DisplayTitle())
		if imageFilename != "" {
			fmt.Fprintf(&buf, "![Poster](%s)\n\n", imageFilename)
		}
		if detail.Tagline != "" {
			fmt.Fprintf(&buf, "> %s\n\n", detail.Tagline)
		}
		writeField(&buf, "**%s**: %s\n", "Released", detail.ReleaseDate)
		writeField(&buf, "**%s**: %s\n", "Runtime", formatRuntime(detail.Runtime))
		writeField(&buf, "**%s**: %s\n", "Rating", rating(detail.VoteAverage))
		writeField(&buf, "**%s**: %s\n", "Genres", strings.Join(genres, ", "))
		writeField(&buf, "**%s**: %s\n", "Streaming", strings.Join(providers, ", "))
		writeField(&buf, "**%s**: %s\n", "Trailer", detail.Trailer)
		if detail.Overview != "" {
			fmt.Fprintf(&buf, "\n## Overview\n\n%s\n", detail.Overview)
		}
		return buf.Bytes(), nil
	}

	fmt.Fprintf(&buf, "%s\n", resultLine(detail.ResultItem))
	writeField(&buf, "%s: %s\n", "Tagline", detail.Tagline)
	writeField(&buf, "%s: %s\n", "Runtime", formatRuntime(detail.Runtime))
	writeField(&buf, "%s: %s\n", "Genres", strings.Join(genres, ", "))
	writeField(&buf, "%s: %s\n", "Streaming", strings.Join(providers, ", "))
	writeField(&buf, "%s: %s\n", "Trailer", detail.Trailer)
	if detail.Overview != "" {
		fmt.Fprintf(&buf, "\n%s\n", detail.Overview)
	}
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, layout, label, value string) {
	if value != "" {
		fmt.Fprintf(buf, layout, label, value)
	}
}

func formatRuntime(minutes int) string {
	if minutes <= 0 {
		return ""
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

// Watchlist renders a watchlist's items in list order.
func Watchlist(format Format, list models.Watchlist, items []models.WatchlistItem) ([]byte, error) {
	switch format {
	case FormatJSON:
		list.Items = items
		list.ItemCount = len(items)
		return shared.MarshalJSON(list, true)
	case FormatCSV:
		rows := make([][]string, len(items))
		for i, item := range items {
			rows[i] = []string{
				strconv.FormatInt(item.ID, 10),
				strconv.FormatInt(item.MovieID, 10),
				item.Title,
				string(item.Status),
				strconv.Itoa(item.Position),
			}
		}
		return writeCSV([]string{"ID", "MovieID", "Title", "Status", "Position"}, rows)
	case FormatMarkdown:
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "# %s\n\n", list.Name)
		fmt.Fprintf(&buf, "**Items**: %d\n\n", len(items))
		for _, item := range items {
			check := " "
			if item.Status == models.StatusWatched {
				check = "x"
			}
			fmt.Fprintf(&buf, "- [%s] %s (%s)\n", check, item.Title, item.Status)
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "Watchlist: %s (#%d)\n", list.Name, list.ID)
		fmt.Fprintf(&buf, "Items: %d\n\n", len(items))
		for i, item := range items {
			fmt.Fprintf(&buf, "%d. %s [%s]  #%d\n", i+1, item.Title, item.Status, item.ID)
		}
		return buf.Bytes(), nil
	}
}

// Watchlists renders the user's watchlists without their items.
func Watchlists(format Format, lists []models.Watchlist) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(lists, true)
	case FormatCSV:
		rows := make([][]string, len(lists))
		for i, l := range lists {
			rows[i] = []string{strconv.FormatInt(l.ID, 10), l.Name, strconv.Itoa(l.ItemCount)}
		}
		return writeCSV([]string{"ID", "Name", "Items"}, rows)
	default:
		var buf bytes.Buffer
		for _, l := range lists {
			fmt.Fprintf(&buf, "#%d  %s (%d items)\n", l.ID, l.Name, l.ItemCount)
		}
		return buf.Bytes(), nil
	}
}

// Room renders a room with its members and its queue, highest score first.
func Room(format Format, room models.Room, members []models.Member, ranked []models.RoomMovie) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(struct {
			models.Room
			Members []models.Member    `json:"members"`
			Movies  []models.RoomMovie `json:"movies"`
		}{room, members, ranked}, true)
	case FormatCSV:
		rows := make([][]string, len(ranked))
		for i, m := range ranked {
			rows[i] = []string{
				strconv.FormatInt(m.ID, 10),
				strconv.FormatInt(m.MovieID, 10),
				m.Title,
				strconv.Itoa(m.Score),
				strconv.Itoa(m.UserVote),
				m.AddedBy,
			}
		}
		return writeCSV([]string{"ID", "MovieID", "Title", "Score", "YourVote", "AddedBy"}, rows)
	}

	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Username
		if m.IsOwner {
			names[i] += " (owner)"
		}
	}

	var buf bytes.Buffer
	if format == FormatMarkdown {
		fmt.Fprintf(&buf, "# %s\n\n", room.Name)
		fmt.Fprintf(&buf, "**Code**: %s\n", room.Code)
		fmt.Fprintf(&buf, "**Members**: %s\n\n", strings.Join(names, ", "))
		buf.WriteString("## Queue\n\n")
		for i, m := range ranked {
			fmt.Fprintf(&buf, "%d. %s (%+d)\n", i+1, m.Title, m.Score)
		}
		return buf.Bytes(), nil
	}

	fmt.Fprintf(&buf, "Room: %s [%s]\n", room.Name, room.Code)
	fmt.Fprintf(&buf, "Members: %s\n\n", strings.Join(names, ", "))
	for i, m := range ranked {
		vote := ""
		switch m.UserVote {
		case 1:
			vote = " ▲"
		case -1:
			vote = " ▼"
		}
		fmt.Fprintf(&buf, "%d. %s  %+d%s  #%d\n", i+1, m.Title, m.Score, vote, m.ID)
	}
	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{Timeout: 30 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// MarkdownExportResult contains information about files created by WriteDetailExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
	Poster    string
}

// WriteDetailExport writes a title to {dir}/README.md, with the poster saved next to it
// when imageURL is set and downloadable. dir defaults to the title's ID.
func WriteDetailExport(detail models.Detail, dir, imageURL string) (*MarkdownExportResult, error) {
	if dir == "" {
		dir = strconv.FormatInt(detail.ID, 10)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: dir}

	var posterFile string
	if imageURL != "" {
		data, err := DownloadImage(imageURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download poster: %v\n", err)
		} else {
			path := filepath.Join(dir, "poster.jpg")
			if err := os.WriteFile(path, data, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save poster: %v\n", err)
			} else {
				posterFile = "poster.jpg"
				result.Poster = path
				result.Files = append(result.Files, path)
			}
		}
	}

	md, err := Detail(FormatMarkdown, detail, posterFile)
	if err != nil {
		return nil, err
	}
	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, md, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, readme)
	return result, nil
}

// WriteFile writes rendered output to path.
func WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
