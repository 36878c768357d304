package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/manash/olive/pkg/models"
)

// maxNameRunes bounds the "name:" prefix of a text line; longer prefixes
// are treated as part of the prompt.
const maxNameRunes = 20

type jsonRoom struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// DefaultRoomName is the name given to the n-th room (1-based) when the
// user supplies none.
func DefaultRoomName(n int) string {
	return fmt.Sprintf("공간 %d", n)
}

// NewRoom creates a room entry with a fresh id.
func NewRoom(name, prompt string) models.RoomEntry {
	return models.RoomEntry{
		ID:             "room-" + uuid.New().String(),
		Name:           name,
		Prompt:         prompt,
		DesignMessages: []models.DesignMessage{},
		Variations:     []models.DesignVariation{},
		Materials:      []models.Material{},
	}
}

func ParseFile(path string) ([]models.RoomEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return ParseJSON(file)
	case ".txt", "":
		return ParseText(file)
	default:
		return nil, fmt.Errorf("unsupported file format %q: use .txt or .json", ext)
	}
}

// ParseText reads one room per line as "name: prompt" or a bare prompt.
// Blank lines and lines starting with # are skipped.
func ParseText(r io.Reader) ([]models.RoomEntry, error) {
	var rooms []models.RoomEntry
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, prompt := splitLine(line)
		if prompt == "" {
			return nil, fmt.Errorf("room %q has empty prompt", name)
		}
		if name == "" {
			name = DefaultRoomName(len(rooms) + 1)
		}
		rooms = append(rooms, NewRoom(name, prompt))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if len(rooms) == 0 {
		return nil, fmt.Errorf("no rooms found in file")
	}

	return rooms, nil
}

func splitLine(line string) (name, prompt string) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", line
	}
	name = strings.TrimSpace(line[:idx])
	if name == "" || utf8.RuneCountInString(name) > maxNameRunes {
		return "", line
	}
	return name, strings.TrimSpace(line[idx+1:])
}

func ParseJSON(r io.Reader) ([]models.RoomEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var items []jsonRoom
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no rooms found in file")
	}

	rooms := make([]models.RoomEntry, len(items))
	for i, item := range items {
		prompt := strings.TrimSpace(item.Prompt)
		if prompt == "" {
			return nil, fmt.Errorf("room %d has empty prompt", i+1)
		}
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = DefaultRoomName(i + 1)
		}
		rooms[i] = NewRoom(name, prompt)
	}

	return rooms, nil
}
