// Package prompt turns a task type and user input into the system and user
// text sent to the model.
package prompt

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/longkey1/llmnote/internal/llmnote"
)

const extension = ".toml"

// Request is the input to Build.
type Request struct {
	Input    string
	TaskType string            // Template name, empty for a plain message
	Options  map[string]string // Extra {{key}} replacements
}

// Built is the assembled prompt.
type Built struct {
	System string
	User   string
	Model  string // Set when the template pins a model
}

// Build assembles the prompt for req using the templates found in dirs.
// An empty TaskType returns the input verbatim as the user text.
func Build(req Request, dirs []string) (Built, error) {
	if req.TaskType == "" {
		return Built{User: req.Input}, nil
	}

	path, err := find(req.TaskType, dirs)
	if err != nil {
		return Built{}, err
	}

	tmpl, err := LoadTemplate(path)
	if err != nil {
		return Built{}, fmt.Errorf("error loading prompt file: %w", err)
	}

	replacements := make(map[string]string, len(req.Options)+1)
	for key, value := range req.Options {
		replacements[key] = value
	}
	replacements["input"] = req.Input

	built := Built{
		System: fill(tmpl.System, replacements),
		User:   fill(tmpl.User, replacements),
	}

	// Validate model format if specified in the template
	if tmpl.Model != nil {
		if _, _, err := llmnote.ParseModelString(*tmpl.Model); err != nil {
			return Built{}, fmt.Errorf("invalid model format in prompt template: %w", err)
		}
		built.Model = *tmpl.Model
	}

	return built, nil
}

// List returns the names of all templates in dirs, sorted and de-duplicated.
// Templates in subdirectories are named by their relative path.
func List(dirs []string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), extension) {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			seen[filepath.ToSlash(strings.TrimSuffix(rel, extension))] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error reading prompt directory %s: %w", dir, err)
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ParseOptions processes "key:value" arguments into a replacement map
func ParseOptions(args []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, arg := range args {
		// Handle quoted values
		arg = strings.TrimSpace(arg)
		if strings.HasPrefix(arg, `"`) && strings.HasSuffix(arg, `"`) {
			arg = strings.Trim(arg, `"`)
		}

		parts := strings.SplitN(arg, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid argument format: %s. Expected format: key:value", arg)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove escape characters from value
		value = strings.ReplaceAll(value, `\:`, ":")
		value = strings.ReplaceAll(value, `\"`, `"`)

		if key == "" {
			return nil, fmt.Errorf("invalid argument format: %s. Key must not be empty", arg)
		}
		if key == "input" {
			return nil, fmt.Errorf("'input' is a reserved keyword and cannot be used as a key")
		}
		result[key] = value
	}
	return result, nil
}

// find locates the template file; later directories take precedence.
func find(name string, dirs []string) (string, error) {
	file := name
	if !strings.HasSuffix(file, extension) {
		file += extension
	}

	var found string
	for _, dir := range dirs {
		candidate := filepath.Join(dir, file)
		if _, err := os.Stat(candidate); err == nil {
			found = candidate
		}
	}
	if found == "" {
		return "", fmt.Errorf("prompt file '%s' not found in any of the prompt directories: %v", file, dirs)
	}
	return found, nil
}

func fill(text string, replacements map[string]string) string {
	for key, value := range replacements {
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}
