package imagenet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Class is one entry of the label vocabulary.
type Class struct {
	ID    string // WordNet id, empty for plain label files
	Label string
}

// ClassIndex maps network output positions to classes.
type ClassIndex struct {
	classes []Class
}

func NewClassIndex(classes []Class) *ClassIndex {
	return &ClassIndex{classes: classes}
}

// LoadClassIndex reads either Keras' imagenet_class_index.json or a text file
// with one label per line.
func LoadClassIndex(path string) (*ClassIndex, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return parseJSON(b)
	}
	return parseLines(string(b)), nil
}

func parseJSON(b []byte) (*ClassIndex, error) {
	var raw map[string][2]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse class index: %w", err)
	}
	classes := make([]Class, len(raw))
	for k, v := range raw {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(raw) {
			return nil, fmt.Errorf("class index key %q out of range", k)
		}
		classes[i] = Class{ID: v[0], Label: v[1]}
	}
	return &ClassIndex{classes: classes}, nil
}

func parseLines(s string) *ClassIndex {
	var classes []Class
	for _, l := range strings.Split(s, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		classes = append(classes, Class{Label: l})
	}
	return &ClassIndex{classes: classes}
}

func (c *ClassIndex) Len() int {
	return len(c.classes)
}

// At returns the class at output position i. Positions the vocabulary does
// not cover get a synthetic label so mismatched models still render.
func (c *ClassIndex) At(i int) Class {
	if i < 0 || i >= len(c.classes) {
		return Class{Label: "class_" + strconv.Itoa(i)}
	}
	return c.classes[i]
}

// DisplayLabel turns a raw class name such as "granny_smith" into
// "Granny Smith".
func DisplayLabel(label string) string {
	// a Caser is stateful, so one per call
	return cases.Title(language.English).String(strings.ReplaceAll(label, "_", " "))
}
