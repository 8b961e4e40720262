// Package content holds the static texts shown to participants.
package content

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultContent []byte

// Content is the set of static screens.
type Content struct {
	Welcome  string `yaml:"welcome"`
	Rules    string `yaml:"rules"`
	Schedule string `yaml:"schedule"`
	Speakers string `yaml:"speakers"`
	Venue    string `yaml:"venue"`
	// Contacts may contain one %s, replaced by the organiser contact.
	Contacts string `yaml:"contacts"`
}

// Default returns the built-in texts.
func Default() Content {
	c, err := Parse(defaultContent)
	if err != nil {
		panic("content: embedded default: " + err.Error())
	}
	return c
}

// Load reads a YAML file. Keys missing from the file keep their built-in
// text. An empty path returns Default.
func Load(path string) (Content, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Content{}, fmt.Errorf("read content: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Content{}, fmt.Errorf("parse content %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML content.
func Parse(data []byte) (Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Content{}, fmt.Errorf("parse content: %w", err)
	}
	return c, nil
}

// ContactsFor renders the contacts screen.
func (c Content) ContactsFor(organizer string) string {
	if strings.Contains(c.Contacts, "%s") {
		return fmt.Sprintf(c.Contacts, organizer)
	}
	return c.Contacts
}
