package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrStateNotFound is returned by LoadState when no state file exists.
var ErrStateNotFound = errors.New("state file not found")

// StatePath returns the file a state with basename is stored in.
func StatePath(dir, basename string, codec Codec) string {
	return filepath.Join(dir, basename+codec.Extension())
}

// SaveState writes state next to its final path and renames it into place,
// so readers never observe a partially written file.
func SaveState(dir, basename string, codec Codec, state any) error {
	path := StatePath(dir, basename, codec)

	tmp, err := os.CreateTemp(dir, "."+basename+"-*")
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}

	tmpName := tmp.Name()

	err = codec.Encode(tmp, state)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("encode state: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("close state file: %w", err)
	}

	err = os.Rename(tmpName, path)
	if err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

// LoadState decodes the state stored under basename into state, which must be a pointer.
func LoadState(dir, basename string, codec Codec, state any) error {
	path := StatePath(dir, basename, codec)

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrStateNotFound, path)
	}

	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	err = codec.Decode(file, state)
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	return nil
}
