package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadSeedFile reads feed seeds from a YAML (.yml/.yaml) or CSV (.csv) file.
// Rows with a blank URL are kept so that importers can report them as failures.
func LoadSeedFile(path string) ([]Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	var seeds []Seed
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		seeds, err = ParseSeedsYAML(f)
	case ".csv":
		seeds, err = ParseSeedsCSV(f)
	default:
		return nil, fmt.Errorf("unsupported seed file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", path, err)
	}

	slog.Debug("Seed file loaded", "path", path, "feeds", len(seeds))
	return seeds, nil
}

// ParseSeedsYAML expects a top-level "feeds" list of {url, name, active}
func ParseSeedsYAML(r io.Reader) ([]Seed, error) {
	var file seedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i := range file.Feeds {
		file.Feeds[i].URL = strings.TrimSpace(file.Feeds[i].URL)
		file.Feeds[i].Name = strings.TrimSpace(file.Feeds[i].Name)
	}

	return file.Feeds, nil
}

// ParseSeedsCSV expects a header row naming a "url" column and optionally "name"
func ParseSeedsCSV(r io.Reader) ([]Seed, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	urlCol, nameCol := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))) {
		case "url":
			urlCol = i
		case "name":
			nameCol = i
		}
	}
	if urlCol < 0 {
		return nil, fmt.Errorf("CSV header must contain a url column")
	}

	var seeds []Seed
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		seed := Seed{URL: column(record, urlCol), Name: column(record, nameCol)}
		if seed.URL == "" && seed.Name == "" {
			continue
		}
		seeds = append(seeds, seed)
	}

	return seeds, nil
}

func column(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
