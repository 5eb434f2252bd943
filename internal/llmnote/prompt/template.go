package prompt

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Template represents the structure of a TOML prompt file
type Template struct {
	System string  `toml:"system"`
	User   string  `toml:"user"`
	Model  *string `toml:"model,omitempty"`
}

// LoadTemplate loads a prompt file and returns its contents
func LoadTemplate(filePath string) (*Template, error) {
	var tmpl Template
	if _, err := toml.DecodeFile(filePath, &tmpl); err != nil {
		return nil, fmt.Errorf("error decoding prompt file: %v", err)
	}
	return &tmpl, nil
}
