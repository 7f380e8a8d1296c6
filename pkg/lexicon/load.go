package lexicon

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var defaultPacks embed.FS

// LoadDefault returns a library preloaded with the embedded packs.
func LoadDefault() (*Library, error) {
	library := NewLibrary()

	files, err := defaultPacks.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded lexicon packs: %w", err)
	}
	for _, file := range files {
		f, err := defaultPacks.Open("data/" + file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to open embedded pack %s: %w", file.Name(), err)
		}
		pack, err := LoadPack(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("embedded pack %s: %w", file.Name(), err)
		}
		if err := library.AddPack(pack); err != nil {
			return nil, err
		}
	}

	return library, nil
}

// LoadPack decodes a single lexicon pack. Unknown fields are rejected so
// typos in pack files surface as errors rather than silently empty terms.
func LoadPack(r io.Reader) (*Pack, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var pack Pack
	if err := decoder.Decode(&pack); err != nil {
		return nil, fmt.Errorf("failed to decode lexicon pack: %w", err)
	}

	return &pack, nil
}

// LoadPackFile loads a pack from a file path.
func LoadPackFile(path string) (*Pack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lexicon pack: %w", err)
	}
	defer f.Close()

	pack, err := LoadPack(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return pack, nil
}

// LoadPaths merges packs from the given files or directories. Directories
// load every *.yaml they contain, in lexical order.
func (l *Library) LoadPaths(paths []string) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("lexicon path %s: %w", path, err)
		}

		files := []string{path}
		if info.IsDir() {
			files, err = filepath.Glob(filepath.Join(path, "*.yaml"))
			if err != nil {
				return fmt.Errorf("lexicon path %s: %w", path, err)
			}
		}

		for _, file := range files {
			pack, err := LoadPackFile(file)
			if err != nil {
				return err
			}
			if err := l.AddPack(pack); err != nil {
				return err
			}
		}
	}

	return nil
}
