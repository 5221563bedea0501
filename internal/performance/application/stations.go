package application

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoStations is returned when no station list could be loaded.
var ErrNoStations = errors.New("pipeline: no stations configured")

type stationsFile struct {
	Stations []string `yaml:"stations"`
}

// LoadStations resolves the station list. An inline comma separated value
// wins over path; path is read as YAML (.yaml/.yml) or as a CSV file whose
// first data row, after the header, holds the CRS codes.
func LoadStations(inline, path string) ([]string, error) {
	if stations := SplitStations(inline); len(stations) > 0 {
		return stations, nil
	}
	if path == "" {
		return nil, ErrNoStations
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read stations file: %w", err)
	}

	var stations []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		stations, err = parseStationsYAML(data)
	default:
		stations, err = parseStationsCSV(string(data))
	}
	if err != nil {
		return nil, err
	}
	if len(stations) == 0 {
		return nil, ErrNoStations
	}
	return stations, nil
}

// SplitStations parses a comma separated CRS list, dropping blanks.
func SplitStations(value string) []string {
	var result []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func parseStationsYAML(data []byte) ([]string, error) {
	var file stationsFile
	if err := yaml.Unmarshal(data, &file); err == nil && len(file.Stations) > 0 {
		return NormaliseStations(file.Stations), nil
	}
	var list []string
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("pipeline: parse stations yaml: %w", err)
	}
	return NormaliseStations(list), nil
}

func parseStationsCSV(data string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoStations
		}
		return nil, fmt.Errorf("pipeline: parse stations csv: %w", err)
	}
	row, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoStations
		}
		return nil, fmt.Errorf("pipeline: parse stations csv: %w", err)
	}
	return NormaliseStations(row), nil
}

// NormaliseStations trims and uppercases CRS codes, dropping blanks.
func NormaliseStations(values []string) []string {
	var result []string
	for _, value := range values {
		value = strings.ToUpper(strings.TrimSpace(value))
		if value != "" {
			result = append(result, value)
		}
	}
	return result
}
