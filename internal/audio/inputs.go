package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	apperrors "github.com/maauso/audimeta-splitter/internal/errors"
)

// CollectInputs resolves CLI arguments into the ordered list of input files.
// Files keep the given order. A single directory expands to its supported
// audio files sorted by name.
func CollectInputs(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, ErrNoInputs
	}

	if len(args) == 1 {
		info, err := os.Stat(args[0])
		if err != nil {
			return nil, apperrors.Filesystem(err, "stat input %s", args[0])
		}
		if info.IsDir() {
			return ListAudioFiles(args[0])
		}
	}

	inputs := make([]string, 0, len(args))
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, apperrors.Filesystem(err, "stat input %s", arg)
		}
		if info.IsDir() {
			return nil, apperrors.Filesystem(nil, "%s is a directory; pass either one directory or a list of files", arg)
		}
		inputs = append(inputs, arg)
	}

	return inputs, nil
}

// ListAudioFiles lists all supported audio files in a directory sorted by name.
func ListAudioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.Filesystem(err, "read directory %s", dir)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && IsSupported(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInputs, dir)
	}

	sort.Strings(files)
	return files, nil
}
