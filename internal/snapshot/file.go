package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile stores img at path. The file is written to a temporary name
// in the same directory and renamed into place.
func WriteFile(path string, img *Image, c Codec) (err error) {
	data, err := Encode(img, c)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".heapwalk-*")
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	if err = os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

// ReadFile loads the image at path.
func ReadFile(path string) (*Image, Codec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: %w", err)
	}
	img, c, err := Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, c, nil
}
