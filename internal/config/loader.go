package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads a task manifest from the provided path. Workdir values are
// environment-expanded and resolved relative to the manifest's directory.
func Load(path string) (*Taskfile, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve taskfile path: %w", err)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open taskfile: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	var doc Taskfile
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}
	doc.Source = absPath

	if len(doc.Tasks) == 0 {
		return nil, fmt.Errorf("%s: no tasks defined", absPath)
	}

	baseDir := filepath.Dir(absPath)
	for name, task := range doc.Tasks {
		if task == nil {
			return nil, fmt.Errorf("%s: task %s is empty", absPath, name)
		}
		if err := validateTask(task); err != nil {
			return nil, fmt.Errorf("%s: task %s: %w", absPath, name, err)
		}
		if task.Workdir != "" {
			expanded := os.ExpandEnv(task.Workdir)
			if !filepath.IsAbs(expanded) {
				expanded = filepath.Clean(filepath.Join(baseDir, expanded))
			}
			task.Workdir = expanded
		}
		for i, arg := range task.Command {
			task.Command[i] = os.ExpandEnv(arg)
		}
	}
	return &doc, nil
}

func validateTask(task *Task) error {
	if len(task.Command) == 0 && task.Program == "" {
		return fmt.Errorf("requires a command or a program")
	}
	if _, err := task.Options(); err != nil {
		return err
	}
	return nil
}
